// Package api defines the core data types shared by the kette pipeline,
// its router, and its transports.
//
// The package has no transport dependencies and performs no I/O. It
// provides:
//   - [Request]: the parsed request handed to middleware and handlers
//   - [Response]: a closed variant of [HTTPResponse] (buffered) and
//     [StreamingResponse] (lazily produced body)
//   - [Exception] and [StatusError]: status-bearing failures that drive
//     exception recovery
//
// Response constructors ([HTML], [Text], [JSON], [Stream]) build the
// variants with sensible content types. [HTML] is also what the pipeline
// uses for every response it synthesizes after a failure.
package api
