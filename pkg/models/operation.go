package models

// File operation kinds.
const (
	OperationKindRename       = "rename"
	OperationKindMove         = "move"
	OperationKindConvert      = "convert"
	OperationKindExtractExtra = "extract_extra"
)

// FileOperation is one planned filesystem mutation. The plan is computed the
// same way in dry-run and live mode; only the apply step differs.
type FileOperation struct {
	Source  string `json:"source"`
	Dest    string `json:"dest"`
	Kind    string `json:"kind"`
	Applied bool   `json:"applied"`
}
