// Package templates embeds the files the installer copies into projects.
package templates

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
)

//go:embed files
var files embed.FS

const (
	ChatmodesDir    = "chatmodes"
	InstructionsDir = "instructions"
	PackageJSON     = "project-package.json"
	MCPConfig       = "mcp.json"
	Instructions    = "testgenie.instructions.md"
)

// Chatmode describes one installable chat mode.
type Chatmode struct {
	Type        string
	Name        string
	File        string
	Instruction string
	Summary     string
}

var chatmodes = []Chatmode{
	{
		Type:        "test",
		Name:        "TestGenie",
		File:        "TestGenie.chatmode.md",
		Instruction: Instructions,
		Summary:     "Generate test cases and automation scripts",
	},
	{
		Type:        "bug",
		Name:        "BugGenie",
		File:        "BugGenie.chatmode.md",
		Instruction: Instructions,
		Summary:     "Create detailed bug reports and Jira tickets",
	},
	{
		Type:    "script",
		Name:    "ScriptGenerator",
		File:    "ScriptGenerator.chatmode.md",
		Summary: "Generate Playwright automation scripts",
	},
}

// FS returns the template tree rooted at its top directory.
func FS() fs.FS {
	sub, err := fs.Sub(files, "files")
	if err != nil {
		panic(err)
	}
	return sub
}

func Chatmodes() []Chatmode {
	return append([]Chatmode(nil), chatmodes...)
}

func Types() []string {
	out := make([]string, 0, len(chatmodes))
	for _, c := range chatmodes {
		out = append(out, c.Type)
	}
	sort.Strings(out)
	return out
}

func Lookup(typ string) (Chatmode, error) {
	for _, c := range chatmodes {
		if c.Type == typ {
			return c, nil
		}
	}
	return Chatmode{}, fmt.Errorf("unknown chatmode type: %s", typ)
}

func Read(name string) ([]byte, error) {
	return fs.ReadFile(FS(), name)
}
