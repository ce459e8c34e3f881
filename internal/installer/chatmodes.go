package installer

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/leshachaplin/testgenie/internal/templates"
)

// CopyResult lists which project files were written and which were left alone.
type CopyResult struct {
	Written   []string
	Skipped   []string
	Unchanged []string
}

func (r *CopyResult) merge(o CopyResult) {
	r.Written = append(r.Written, o.Written...)
	r.Skipped = append(r.Skipped, o.Skipped...)
	r.Unchanged = append(r.Unchanged, o.Unchanged...)
}

// InstallChatmode copies one chat mode and its instructions into the project.
// Existing files are kept unless force is set.
func InstallChatmode(src fs.FS, l Layout, typ string, force bool) (CopyResult, error) {
	c, err := templates.Lookup(typ)
	if err != nil {
		return CopyResult{}, err
	}

	var res CopyResult
	r, err := copyTemplate(src, path.Join(templates.ChatmodesDir, c.File), filepath.Join(l.Chatmodes, c.File), force)
	if err != nil {
		return res, err
	}
	res.merge(r)

	if c.Instruction != "" {
		r, err := copyTemplate(src, path.Join(templates.InstructionsDir, c.Instruction), filepath.Join(l.Instructions, c.Instruction), force)
		if err != nil {
			return res, err
		}
		res.merge(r)
	}
	return res, nil
}

// UpdateChatmodes rewrites installed chat modes whose content differs from
// the embedded templates. Chat modes that were never installed are ignored.
func UpdateChatmodes(src fs.FS, l Layout) (CopyResult, error) {
	var res CopyResult
	for _, c := range templates.Chatmodes() {
		target := filepath.Join(l.Chatmodes, c.File)
		if !exists(target) {
			continue
		}
		r, err := refresh(src, path.Join(templates.ChatmodesDir, c.File), target)
		if err != nil {
			return res, err
		}
		res.merge(r)

		if c.Instruction != "" {
			r, err := refresh(src, path.Join(templates.InstructionsDir, c.Instruction), filepath.Join(l.Instructions, c.Instruction))
			if err != nil {
				return res, err
			}
			res.merge(r)
		}
	}
	return res, nil
}

func copyTemplate(src fs.FS, name, target string, force bool) (CopyResult, error) {
	if exists(target) && !force {
		return CopyResult{Skipped: []string{target}}, nil
	}
	data, err := fs.ReadFile(src, name)
	if err != nil {
		return CopyResult{}, fmt.Errorf("template %s: %w", name, err)
	}
	if err := writeFile(target, data); err != nil {
		return CopyResult{}, err
	}
	return CopyResult{Written: []string{target}}, nil
}

func refresh(src fs.FS, name, target string) (CopyResult, error) {
	want, err := fs.ReadFile(src, name)
	if err != nil {
		return CopyResult{}, fmt.Errorf("template %s: %w", name, err)
	}
	have, err := os.ReadFile(target)
	if err == nil && bytes.Equal(have, want) {
		return CopyResult{Unchanged: []string{target}}, nil
	}
	if err := writeFile(target, want); err != nil {
		return CopyResult{}, err
	}
	return CopyResult{Written: []string{target}}, nil
}
