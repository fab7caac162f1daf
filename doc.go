package conformance

// Package conformance checks JSON payloads and API responses against a
// schema model of a Consumer Data Standards style API. It provides:
//
// - An immutable schema Model (schemas by name, responses by operation and status code, ordered payload candidates)
// - A stable error model via Errors (kind, JSON Pointer, field, schema, description)
// - Structural validation with allOf flattening, anyOf/oneOf choices and conditional value formats
// - Pagination consistency checks of links and meta against the request URL
// - A separate Fault channel for inputs that cannot be checked at all (shape mismatch, excessive depth)
//
// Design policy:
// - Keep only public APIs in the root package; put the CLI, HTTP service and runner under internal/ and cmd/.
// - Load models from OpenAPI documents with openapi/, or build them in code with dsl/.
// - Prefer black-box testing against public APIs.
//
// Typical usage:
//
//  m, _, err := openapi.LoadFile("banking.yaml", openapi.Options{})
//  eng := conformance.NewEngine(m)
//
//  res, err := eng.ValidatePayload(data)
//  errs, err := eng.ValidateResponseBytes(requestURL, body, "listProducts", 200)
//
