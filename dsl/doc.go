// Package dsl builds conformance schema models in Go code.
//
// Entry points
//   - Object(name): create an object builder; chain Field(...).Required() and AllOf/AnyOf/OneOf.
//   - String()/Number()/Integer()/Bool()/Any(): scalar properties, refined with
//     Pattern/Min/Max/URI/DateTime/Named and conditional When/Override.
//   - Ref(schema), ArrayOf(schema), SetOf(schema), Strings(): nested shapes.
//   - Model(objects...): collect objects, map responses with Response(op, code, schema),
//     order payload candidates with Payloads, then Build()/MustBuild().
//
// Example
//
//	m := dsl.Model(
//	    dsl.Object("BankingProduct").
//	        Field("productId", dsl.String().Pattern(`[A-Za-z0-9-]+`).Named("ASCIIString")).Required().
//	        Field("lastUpdated", dsl.String().DateTime()).Required().
//	        Field("applicationUri", dsl.String().URI()).Optional(),
//	    dsl.Object("ResponseBankingProduct").
//	        Field("data", dsl.Ref("BankingProduct")).Required(),
//	).Response("getProduct", 200, "ResponseBankingProduct").MustBuild()
//
// Builders collect their errors (bad bounds, undeclared required names) and
// report them together from Build.
package dsl
