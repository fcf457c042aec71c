// Package dictionary handles suggestion dictionaries: the serialized
// DictionaryIndex format, validation of untrusted dictionary files, the
// import pipeline that commits them into the override store, and the
// builder that produces indexes from word/frequency lists.
//
// # File naming
//
// Bundled and imported dictionaries share one convention:
//
//	<languageCode>_base.dict
//
// so the prediction engine can enumerate installed languages uniformly.
//
// # Import states
//
//	Received → Validating → Accepted → Committed
//	                      ↘ Rejected
//
// A file is only ever written to the override store after the complete
// content has validated against the DictionaryIndex schema, and the write
// itself is atomic. The store therefore never holds a dictionary the
// engine cannot parse.
package dictionary
