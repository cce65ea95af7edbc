package ddb

// Header names form the protocol surface of the commands. They are part of the
// public contract and must not change.
const (
	// HeaderPrefix starts the name of every header the commands read or write.
	HeaderPrefix = "Ddb"

	// HeaderOperation selects the command (string or Operation). Overrides Configuration.Operation.
	HeaderOperation = "DdbOperation"

	// --------------------------------------------------------------------------
	// Input headers
	// --------------------------------------------------------------------------

	HeaderTableName        = "DdbTableName"        // string, overrides Configuration.TableName
	HeaderKey              = "DdbKey"              // map[string]types.AttributeValue
	HeaderItem             = "DdbItem"             // map[string]types.AttributeValue
	HeaderUpdateCondition  = "DdbUpdateCondition"  // map[string]types.ExpectedAttributeValue
	HeaderUpdateValues     = "DdbUpdateValues"     // map[string]types.AttributeValueUpdate
	HeaderAttributeNames   = "DdbAttributeNames"   // []string
	HeaderConsistentRead   = "DdbConsistentRead"   // bool, overrides Configuration.ConsistentRead
	HeaderReturnValues     = "DdbReturnValues"     // string or types.ReturnValue
	HeaderKeyConditions    = "DdbKeyConditions"    // map[string]types.Condition
	HeaderScanFilter       = "DdbScanFilter"       // map[string]types.Condition
	HeaderLimit            = "DdbLimit"            // int32
	HeaderScanIndexForward = "DdbScanIndexForward" // bool
	HeaderStartKey         = "DdbStartKey"         // map[string]types.AttributeValue
	HeaderBatchItems       = "DdbBatchItems"       // map[string]types.KeysAndAttributes

	// --------------------------------------------------------------------------
	// Output headers
	// --------------------------------------------------------------------------

	HeaderAttributes       = "DdbAttributes"       // map[string]types.AttributeValue
	HeaderItems            = "DdbItems"            // []map[string]types.AttributeValue
	HeaderCount            = "DdbCount"            // int32
	HeaderScannedCount     = "DdbScannedCount"     // int32
	HeaderLastEvaluatedKey = "DdbLastEvaluatedKey" // map[string]types.AttributeValue
	HeaderBatchResponse    = "DdbBatchResponse"    // map[string][]map[string]types.AttributeValue
	HeaderUnprocessedKeys  = "DdbUnprocessedKeys"  // map[string]types.KeysAndAttributes
	HeaderTableStatus      = "DdbTableStatus"      // string
	HeaderKeySchema        = "DdbKeySchema"        // []types.KeySchemaElement
	HeaderCreationDate     = "DdbCreationDate"     // time.Time
	HeaderItemCount        = "DdbItemCount"        // int64
	HeaderTableSize        = "DdbTableSize"        // int64
	HeaderReadCapacity     = "DdbReadCapacity"     // int64
	HeaderWriteCapacity    = "DdbWriteCapacity"    // int64
)
