package item

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/ddbx/cmd/util"
	"github.com/ValentinKolb/ddbx/lib/ddb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/spf13/cobra"
)

var (
	putCmd = &cobra.Command{
		Use:   "put [item]",
		Short: "Writes an item, replacing any item with the same key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item, err := util.ParseItem(args[0], typed())
			if err != nil {
				return err
			}
			headers := map[string]any{ddb.HeaderItem: item}
			if err = addWriteFlags(cmd, headers); err != nil {
				return err
			}

			out, err := dispatch(ddb.OpPutItem, headers)
			if err != nil {
				return err
			}
			if !out.HasHeader(ddb.HeaderAttributes) {
				fmt.Println("put successfully")
				return nil
			}
			return printResult(out, ddb.HeaderAttributes)
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the item identified by the key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := util.ParseItem(args[0], typed())
			if err != nil {
				return err
			}
			headers := map[string]any{ddb.HeaderKey: key}
			if err = addReadFlags(cmd, headers); err != nil {
				return err
			}

			out, err := dispatch(ddb.OpGetItem, headers)
			if err != nil {
				return err
			}
			if !out.HasHeader(ddb.HeaderAttributes) {
				fmt.Println("item not found")
				return nil
			}
			return printResult(out, ddb.HeaderAttributes)
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes the item identified by the key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := util.ParseItem(args[0], typed())
			if err != nil {
				return err
			}
			headers := map[string]any{ddb.HeaderKey: key}
			if err = addWriteFlags(cmd, headers); err != nil {
				return err
			}

			out, err := dispatch(ddb.OpDeleteItem, headers)
			if err != nil {
				return err
			}
			if !out.HasHeader(ddb.HeaderAttributes) {
				fmt.Println("deleted successfully")
				return nil
			}
			return printResult(out, ddb.HeaderAttributes)
		},
	}
	updateCmd = &cobra.Command{
		Use:   "update [key] [attributes]",
		Short: "Sets attributes of the item identified by the key",
		Long: `Sets attributes of the item identified by the key. The item is created if it does not exist.
Use --add to add the values to numbers and sets instead and --remove to delete attributes.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := util.ParseItem(args[0], typed())
			if err != nil {
				return err
			}

			updates := make(map[string]types.AttributeValueUpdate)
			if len(args) == 2 {
				values, err := util.ParseItem(args[1], typed())
				if err != nil {
					return err
				}
				action := types.AttributeActionPut
				if add, _ := cmd.Flags().GetBool("add"); add {
					action = types.AttributeActionAdd
				}
				for name, value := range values {
					updates[name] = types.AttributeValueUpdate{Action: action, Value: value}
				}
			}
			remove, _ := cmd.Flags().GetStringSlice("remove")
			for _, name := range remove {
				updates[name] = types.AttributeValueUpdate{Action: types.AttributeActionDelete}
			}
			if len(updates) == 0 {
				return fmt.Errorf("nothing to update: pass attributes or --remove")
			}

			headers := map[string]any{ddb.HeaderKey: key, ddb.HeaderUpdateValues: updates}
			if err = addWriteFlags(cmd, headers); err != nil {
				return err
			}

			out, err := dispatch(ddb.OpUpdateItem, headers)
			if err != nil {
				return err
			}
			if !out.HasHeader(ddb.HeaderAttributes) {
				fmt.Println("updated successfully")
				return nil
			}
			return printResult(out, ddb.HeaderAttributes)
		},
	}
	queryCmd = &cobra.Command{
		Use:   "query [key-conditions]",
		Short: "Reads the items matching the key conditions",
		Long: `Reads the items matching the key conditions. The conditions are DynamoDB JSON, e.g.
{"id":{"ComparisonOperator":"EQ","AttributeValueList":[{"S":"o-1"}]}}`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conditions, err := util.ParseConditions(args[0])
			if err != nil {
				return err
			}
			headers := map[string]any{ddb.HeaderKeyConditions: conditions}
			if err = addReadFlags(cmd, headers); err != nil {
				return err
			}
			if err = addPageFlags(cmd, headers); err != nil {
				return err
			}
			if backward, _ := cmd.Flags().GetBool("backward"); backward {
				headers[ddb.HeaderScanIndexForward] = false
			}

			out, err := dispatch(ddb.OpQuery, headers)
			if err != nil {
				return err
			}
			return printResult(out, ddb.HeaderItems, ddb.HeaderCount, ddb.HeaderLastEvaluatedKey)
		},
	}
	scanCmd = &cobra.Command{
		Use:   "scan",
		Short: "Reads all items of the table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			headers := make(map[string]any)
			if filter, _ := cmd.Flags().GetString("filter"); filter != "" {
				conditions, err := util.ParseConditions(filter)
				if err != nil {
					return err
				}
				headers[ddb.HeaderScanFilter] = conditions
			}
			if err := addReadFlags(cmd, headers); err != nil {
				return err
			}
			if err := addPageFlags(cmd, headers); err != nil {
				return err
			}

			out, err := dispatch(ddb.OpScan, headers)
			if err != nil {
				return err
			}
			return printResult(out, ddb.HeaderItems, ddb.HeaderCount, ddb.HeaderScannedCount, ddb.HeaderLastEvaluatedKey)
		},
	}
	batchGetCmd = &cobra.Command{
		Use:   "batch-get [table] [keys] [[table] [keys]...]",
		Short: "Reads items from one or more tables",
		Long:  `Reads items from one or more tables. Every table is followed by a JSON array of keys.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 || len(args)%2 != 0 {
				return fmt.Errorf("expected pairs of table and keys, got %d arguments", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			attributes, _ := cmd.Flags().GetStringSlice("attributes")
			consistent, _ := cmd.Flags().GetBool("consistent")

			requests := make(map[string]types.KeysAndAttributes)
			for i := 0; i < len(args); i += 2 {
				keys, err := util.ParseItems(args[i+1], typed())
				if err != nil {
					return err
				}
				request := types.KeysAndAttributes{Keys: keys, AttributesToGet: attributes}
				if consistent {
					request.ConsistentRead = &consistent
				}
				requests[args[i]] = request
			}

			out, err := dispatch(ddb.OpBatchGetItems, map[string]any{ddb.HeaderBatchItems: requests})
			if err != nil {
				return err
			}
			return printResult(out, ddb.HeaderBatchResponse, ddb.HeaderUnprocessedKeys)
		},
	}
	describeCmd = &cobra.Command{
		Use:   "describe",
		Short: "Prints the metadata of the table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := dispatch(ddb.OpDescribeTable, nil)
			if err != nil {
				return err
			}
			return printResult(out,
				ddb.HeaderTableName, ddb.HeaderTableStatus, ddb.HeaderKeySchema, ddb.HeaderCreationDate,
				ddb.HeaderItemCount, ddb.HeaderTableSize, ddb.HeaderReadCapacity, ddb.HeaderWriteCapacity,
			)
		},
	}
	dropTableCmd = &cobra.Command{
		Use:   "drop-table",
		Short: "Deletes the table and all its items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := dispatch(ddb.OpDeleteTable, nil); err != nil {
				return err
			}
			fmt.Println("table deleted successfully")
			return nil
		},
	}
)

func init() {
	for _, cmd := range []*cobra.Command{putCmd, delCmd, updateCmd} {
		cmd.Flags().String("expected", "", util.WrapString("Only write if the item matches these expected values (DynamoDB JSON, e.g. {\"qty\":{\"Value\":{\"N\":\"2\"}}})"))
		cmd.Flags().String("return-values", "", util.WrapString("Attributes to return (NONE, ALL_OLD, UPDATED_OLD, ALL_NEW, UPDATED_NEW)"))
	}
	updateCmd.Flags().Bool("add", false, util.WrapString("Add the values to numbers and sets instead of replacing them"))
	updateCmd.Flags().StringSlice("remove", nil, util.WrapString("Attributes to remove from the item"))

	for _, cmd := range []*cobra.Command{getCmd, queryCmd, scanCmd, batchGetCmd} {
		cmd.Flags().StringSlice("attributes", nil, util.WrapString("Only return these attributes"))
		cmd.Flags().Bool("consistent", false, util.WrapString("Use strongly consistent reads"))
	}
	for _, cmd := range []*cobra.Command{queryCmd, scanCmd} {
		cmd.Flags().Int32("limit", 0, util.WrapString("Maximum number of items to evaluate (0 = no limit)"))
		cmd.Flags().String("start", "", util.WrapString("Key to continue after (the LastEvaluatedKey of the previous page)"))
	}
	queryCmd.Flags().Bool("backward", false, util.WrapString("Return the items in descending range key order"))
	scanCmd.Flags().String("filter", "", util.WrapString("Only return items matching these conditions (same format as the key conditions of query)"))
}

// --------------------------------------------------------------------------
// Flag Helper
// --------------------------------------------------------------------------

func addWriteFlags(cmd *cobra.Command, headers map[string]any) error {
	if expected, _ := cmd.Flags().GetString("expected"); expected != "" {
		cond, err := util.ParseExpected(expected)
		if err != nil {
			return err
		}
		headers[ddb.HeaderUpdateCondition] = cond
	}
	if rv, _ := cmd.Flags().GetString("return-values"); rv != "" {
		headers[ddb.HeaderReturnValues] = strings.ToUpper(rv)
	}
	return nil
}

func addReadFlags(cmd *cobra.Command, headers map[string]any) error {
	if attributes, _ := cmd.Flags().GetStringSlice("attributes"); len(attributes) > 0 {
		headers[ddb.HeaderAttributeNames] = attributes
	}
	if cmd.Flags().Changed("consistent") {
		consistent, _ := cmd.Flags().GetBool("consistent")
		headers[ddb.HeaderConsistentRead] = consistent
	}
	return nil
}

func addPageFlags(cmd *cobra.Command, headers map[string]any) error {
	if limit, _ := cmd.Flags().GetInt32("limit"); limit > 0 {
		headers[ddb.HeaderLimit] = limit
	}
	if start, _ := cmd.Flags().GetString("start"); start != "" {
		key, err := util.ParseItem(start, typed())
		if err != nil {
			return err
		}
		headers[ddb.HeaderStartKey] = key
	}
	return nil
}
