package utils

import (
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"
)

//InSlice returns true if given string appears in given slice
func InSlice(lookingFor string, slice []string) bool {
	for _, s := range slice {
		if s == lookingFor {
			return true
		}
	}

	return false
}

//ListDir returns a list of files/ directories in given path
func ListDir(path string) ([]string, error) {
	names := make([]string, 0)
	if files, err := ioutil.ReadDir(path); err != nil {
		return nil, fmt.Errorf("ListDir: Error, got '%v'", err)
	} else {
		for _, f := range files {
			names = append(names, f.Name())
		}
	}

	return names, nil
}

//BaseName returns file's name without directory and extension ("dir/pitch.mp4" -> "pitch")
func BaseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

//SafeName reports whether given name is a plain file name that can't escape it's directory
func SafeName(name string) bool {
	return name != "" && name != "." && name != ".." && filepath.Base(name) == name && !strings.ContainsAny(name, `/\`)
}
