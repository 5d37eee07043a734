/*
Package descriptor decodes an experiment description file into the
types.Node/types.Group declarations, named types.TaskDef tasklists, and
the ordered types.StepNode sequence the engine runs.

The XML schema and its structural validation are an external contract
(the original gplmt-light project ships a RELAX NG schema alongside the
description format); reimplementing schema validation is out of scope
here. This package decodes an already well-formed document into the
typed tree pkg/engine consumes, and performs the few structural checks
that cannot be expressed in a schema: include-cycle detection and
mutually exclusive loop-attribute combinations. Tasklist and target
references are not resolved here; an unknown name surfaces as a
SyntaxError when the step that uses it runs.

decode.go is a direct, idiom-translated port of the include-merging and
auto-naming passes (`process_includes`, `augment_experiment`,
`establish_names`) in the control program this module's behavior is
grounded on; element/attribute shapes mirror attr.go's raw XML structs.
*/
package descriptor
