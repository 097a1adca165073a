package efs

import "strings"

// splitComponents validates and tokenizes an absolute path. Empty
// components (from a leading, trailing, or doubled slash) are dropped,
// per the resolver's "trailing empty component is ignored" rule.
func splitComponents(path string) ([]string, error) {
	if len(path) == 0 || path[0] != '/' {
		return nil, InvalidArg
	}
	if len(path) >= PathMax {
		return nil, InvalidArg
	}

	var comps []string
	for _, c := range strings.Split(path, "/") {
		if c == "" {
			continue
		}
		if len(c) > FilenameMax-1 {
			return nil, InvalidArg
		}
		comps = append(comps, c)
	}
	return comps, nil
}

// resolve walks path from the root, returning the inode number and type
// of the final component. Encountering a non-directory before the last
// component yields NotDirectory.
func (m *Mount) resolve(path string) (uint32, Type, error) {
	comps, err := splitComponents(path)
	if err != nil {
		return 0, 0, err
	}

	cur := m.sb.RootIno
	curType := DirType

	for _, c := range comps {
		if curType != DirType {
			return 0, 0, NotDirectory
		}
		child, childType, err := m.dirLookup(cur, c)
		if err != nil {
			return 0, 0, err
		}
		cur, curType = child, childType
	}

	return cur, curType, nil
}

// resolveParent walks path from the root up to, but not including, the
// final component, returning the parent directory's inode number and
// the leaf name. Used by operations that create or remove an entry.
func (m *Mount) resolveParent(path string) (parent uint32, name string, err error) {
	comps, err := splitComponents(path)
	if err != nil {
		return 0, "", err
	}
	if len(comps) == 0 {
		return 0, "", InvalidArg
	}

	cur := m.sb.RootIno
	curType := DirType

	for _, c := range comps[:len(comps)-1] {
		if curType != DirType {
			return 0, "", NotDirectory
		}
		child, childType, err := m.dirLookup(cur, c)
		if err != nil {
			return 0, "", err
		}
		cur, curType = child, childType
	}

	if curType != DirType {
		return 0, "", NotDirectory
	}

	return cur, comps[len(comps)-1], nil
}
