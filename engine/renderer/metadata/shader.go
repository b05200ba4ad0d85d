package metadata

/**
 * @brief SPIR-V bytecode for a single shader stage. Path is kept so the
 * asset watcher can match file changes back to the stage.
 */
type ShaderSource struct {
	Path  string
	Code  []byte
	Entry string
}

// EntryPoint defaults to "main".
func (s ShaderSource) EntryPoint() string {
	if s.Entry == "" {
		return "main"
	}
	return s.Entry
}

func (s ShaderSource) Empty() bool {
	return len(s.Code) == 0
}
