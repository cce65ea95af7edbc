package local

import (
	"context"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// entry is an item together with its storage key.
type entry struct {
	key  string
	item map[string]types.AttributeValue
}

// page is one result page of a Query or Scan.
type page struct {
	items         []map[string]types.AttributeValue
	scanned       int32
	lastEvaluated map[string]types.AttributeValue
}

// collectPage applies Limit to the evaluated entries. Entries not passing filter
// count as scanned but are not returned.
func collectPage(meta *tableMeta, entries []entry, limit *int32, filter func(map[string]types.AttributeValue) (bool, error), names []string) (*page, error) {
	if limit != nil && *limit <= 0 {
		return nil, validationError("Limit must be greater than 0")
	}

	p := &page{items: []map[string]types.AttributeValue{}}
	for i, e := range entries {
		if limit != nil && p.scanned == *limit {
			// more entries left, continue after the last evaluated one
			p.lastEvaluated, _, _ = meta.primaryKey(entries[i-1].item, false)
			break
		}
		p.scanned++

		ok, err := filter(e.item)
		if err != nil {
			return nil, err
		}
		if ok {
			p.items = append(p.items, project(e.item, names))
		}
	}
	return p, nil
}

// --------------------------------------------------------------------------
// Query
// --------------------------------------------------------------------------

// Query supports the legacy KeyConditions: EQ on the hash key and an optional
// condition on the range key. Results are ordered by the range key.
func (c *Client) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	meta, err := c.table(in.TableName)
	if err != nil {
		return nil, err
	}
	if in.IndexName != nil {
		return nil, validationError("secondary indexes are not supported")
	}

	hashCond, ok := in.KeyConditions[meta.HashKey]
	if !ok || hashCond.ComparisonOperator != types.ComparisonOperatorEq || len(hashCond.AttributeValueList) != 1 {
		return nil, validationError("Query condition missed key schema element: %s", meta.HashKey)
	}
	hash := hashCond.AttributeValueList[0]
	if _, err = meta.keyAttribute(map[string]types.AttributeValue{meta.HashKey: hash}, meta.HashKey, meta.HashType); err != nil {
		return nil, err
	}

	var rangeCond *types.Condition
	for name, cond := range in.KeyConditions {
		switch {
		case name == meta.HashKey:
		case meta.hasRange() && name == meta.RangeKey:
			switch cond.ComparisonOperator {
			case types.ComparisonOperatorEq, types.ComparisonOperatorLe, types.ComparisonOperatorLt,
				types.ComparisonOperatorGe, types.ComparisonOperatorGt,
				types.ComparisonOperatorBeginsWith, types.ComparisonOperatorBetween:
			default:
				return nil, validationError("unsupported operator %s on range key %s", cond.ComparisonOperator, name)
			}
			rangeCond = &cond
		default:
			return nil, validationError("Query key condition not supported: %s is not a key attribute", name)
		}
	}

	forward := in.ScanIndexForward == nil || *in.ScanIndexForward

	var entries []entry
	var decodeErr error
	err = c.backend.Range(meta.Name, meta.hashPrefix(hash), func(key string, value []byte) bool {
		item, err := c.codec.decodeItem(value)
		if err != nil {
			decodeErr = err
			return false
		}
		if rangeCond != nil {
			ok, err := evalCondition(item[meta.RangeKey], rangeCond.ComparisonOperator, rangeCond.AttributeValueList)
			if err != nil {
				decodeErr = err
				return false
			}
			if !ok {
				return true
			}
		}
		entries = append(entries, entry{key: key, item: item})
		return true
	})
	if err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}

	if meta.hasRange() {
		sort.SliceStable(entries, func(i, j int) bool {
			cmp, _ := compare(entries[i].item[meta.RangeKey], entries[j].item[meta.RangeKey])
			if forward {
				return cmp < 0
			}
			return cmp > 0
		})
	}

	if in.ExclusiveStartKey != nil {
		entries, err = skipUntil(meta, entries, in.ExclusiveStartKey, forward)
		if err != nil {
			return nil, err
		}
	}

	p, err := collectPage(meta, entries, in.Limit, func(item map[string]types.AttributeValue) (bool, error) {
		return matchConditions(item, in.QueryFilter, in.ConditionalOperator)
	}, in.AttributesToGet)
	if err != nil {
		return nil, err
	}

	return &dynamodb.QueryOutput{
		Items:            p.items,
		Count:            int32(len(p.items)),
		ScannedCount:     p.scanned,
		LastEvaluatedKey: p.lastEvaluated,
	}, nil
}

// skipUntil drops all entries up to and including the start key (in result order).
func skipUntil(meta *tableMeta, entries []entry, start map[string]types.AttributeValue, forward bool) ([]entry, error) {
	startKey, storage, err := meta.primaryKey(start, true)
	if err != nil {
		return nil, err
	}
	if !meta.hasRange() {
		for i, e := range entries {
			if e.key == storage {
				return entries[i+1:], nil
			}
		}
		return entries, nil
	}

	startRange := startKey[meta.RangeKey]
	for i, e := range entries {
		cmp, _ := compare(e.item[meta.RangeKey], startRange)
		if (forward && cmp > 0) || (!forward && cmp < 0) {
			return entries[i:], nil
		}
	}
	return nil, nil
}

// --------------------------------------------------------------------------
// Scan
// --------------------------------------------------------------------------

// Scan reads the table in storage key order, applying the legacy ScanFilter.
func (c *Client) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	meta, err := c.table(in.TableName)
	if err != nil {
		return nil, err
	}
	if in.IndexName != nil {
		return nil, validationError("secondary indexes are not supported")
	}
	if aws.ToInt32(in.TotalSegments) > 1 {
		return nil, validationError("parallel scans are not supported")
	}

	var after string
	if in.ExclusiveStartKey != nil {
		if _, after, err = meta.primaryKey(in.ExclusiveStartKey, true); err != nil {
			return nil, err
		}
	}

	var entries []entry
	var decodeErr error
	err = c.backend.Range(meta.Name, "", func(key string, value []byte) bool {
		if after != "" && key <= after {
			return true
		}
		item, err := c.codec.decodeItem(value)
		if err != nil {
			decodeErr = err
			return false
		}
		entries = append(entries, entry{key: key, item: item})
		return true
	})
	if err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}

	p, err := collectPage(meta, entries, in.Limit, func(item map[string]types.AttributeValue) (bool, error) {
		return matchConditions(item, in.ScanFilter, in.ConditionalOperator)
	}, in.AttributesToGet)
	if err != nil {
		return nil, err
	}

	return &dynamodb.ScanOutput{
		Items:            p.items,
		Count:            int32(len(p.items)),
		ScannedCount:     p.scanned,
		LastEvaluatedKey: p.lastEvaluated,
	}, nil
}
