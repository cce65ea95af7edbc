// Package ddb executes key/value store operations described by envelopes.
// Every operation is a Command bound to a store Client, a static Configuration
// and the Envelope of one invocation. The Dispatcher maps an operation id to
// its command variant and runs it.
//
// Key Components:
//
//   - Client Interface: The subset of the DynamoDB API the commands use. It is
//     satisfied by *dynamodb.Client from aws-sdk-go-v2 as well as by the in-process
//     client in the local package (github.com/ValentinKolb/ddbx/lib/ddb/local).
//
//   - Commands: PutItem, GetItem, DeleteItem, UpdateItem, Query, Scan, BatchGetItems,
//     DescribeTable and DeleteTable. Each command reads its parameters from the
//     "Ddb*" headers of the input section, falls back to the Configuration where a
//     default exists and writes its results into the response section of the envelope.
//
//   - Dispatcher: Resolves an operation id (see Dispatch) or the DdbOperation header
//     (see DispatchEnvelope) to a command. Unknown ids fail before a command is built.
//
//   - Error System: All failures are *Error values with a RetCode. Use errors.Is with
//     the sentinel errors (ErrMissingParameter, ErrConditionFailed, ...) to branch on
//     the failure class. Client errors are kept as cause and are reachable through
//     errors.As.
//
// Parameter resolution:
//   - A header always takes precedence over the configuration.
//   - A header holding a value of the wrong type fails with RetCTypeMismatch, no
//     conversion is attempted.
//   - Missing required parameters fail with RetCMissingParameter before the store
//     client is called.
//
// Response section:
//
//	For InOut and InOptionalOut envelopes results are written into the output
//	section, which is created on first use as a copy of the input section. For
//	InOnly envelopes results are written into the input section itself.
//
// EnsureTable can be used at startup to create the configured table if it does not
// exist yet.
package ddb
