package tools

const (
	ToolNameReadFile   = "read_file"
	ToolNameCreateFile = "create_file"
	ToolNameEditFile   = "edit_file"
	ToolNameApplyPatch = "apply_patch"
	ToolNameShell      = "shell"
)
