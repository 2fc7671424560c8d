// Package expr provides CEL (Common Expression Language) functionality
// for evaluating rule guards against task properties.
//
// It creates CEL environments with custom functions for:
//   - Task path operations (pathBase, pathDir, pathExt)
//   - JSON property extraction (jsonPath)
//
// Guard expressions have access to variables:
//   - `props` (map<string, string>): The merged properties of a rule result
//   - `task` (string): The input task
package expr
