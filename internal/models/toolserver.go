package models

import "fmt"

// ToolServer describes how to launch one auxiliary tool server: the command
// to execute plus its startup arguments.
type ToolServer struct {
	Command string   `json:"command" yaml:"command"`
	Args    []string `json:"args,omitempty" yaml:"args,omitempty"`
}

// Validate checks that the server definition is launchable.
func (s ToolServer) Validate() error {
	if s.Command == "" {
		return fmt.Errorf("tool server command must not be empty")
	}
	return nil
}
