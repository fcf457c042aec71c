package dictionary

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"kbres/internal/storage"
)

//go:embed dictionary-index.schema.json
var schemaData []byte

const schemaURL = "https://kbres.invalid/schema/dictionary-index.schema.json"

var (
	compiledOnce sync.Once
	compiled     *jsonschema.Schema
	compileErr   error
)

// Validator checks untrusted content against the DictionaryIndex schema.
type Validator struct {
	schema   *jsonschema.Schema
	maxBytes int64
}

// NewValidator returns a validator rejecting content larger than maxBytes.
// A maxBytes of zero or less means no limit.
func NewValidator(maxBytes int64) (*Validator, error) {
	compiledOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaData)); err != nil {
			compileErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiled, compileErr = compiler.Compile(schemaURL)
	})
	if compileErr != nil {
		return nil, compileErr
	}
	return &Validator{schema: compiled, maxBytes: maxBytes}, nil
}

// Validate reads r to the end and checks it. Nothing is written anywhere.
// It returns the parsed index and the digest of the bytes read.
func (v *Validator) Validate(r io.Reader) (*Index, string, error) {
	if v.maxBytes > 0 {
		r = io.LimitReader(r, v.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("%w: read content: %w", ErrInvalidFormat, err)
	}
	if v.maxBytes > 0 && int64(len(data)) > v.maxBytes {
		return nil, "", fmt.Errorf("%w: content exceeds %d bytes", ErrInvalidFormat, v.maxBytes)
	}
	idx, err := v.ValidateBytes(data)
	if err != nil {
		return nil, "", err
	}
	return idx, storage.Digest(data), nil
}

// ValidateBytes checks data against the schema and decodes it.
func (v *Validator) ValidateBytes(data []byte) (*Index, error) {
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if err := v.schema.Validate(instance); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return Parse(data)
}
