package adapter

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// Lists in mqpar.xml that hold one entry per raw file, parallel to filePaths.
var perFileLists = []string{"experiments", "fractions", "ptms", "paramGroupIndices", "referenceChannel"}

// DescriptorPatch is the outcome of PatchDescriptor.
type DescriptorPatch struct {
	Kept    []string // local paths written into filePaths
	Dropped []string // original entries with no staged file
	Threads int
}

// PatchDescriptor rewrites a MaxQuant parameter file for one run directory
// and writes the result to dst:
//   - filePaths entries (usually Windows paths) are pointed at the file of the
//     same base name in workDir; entries with no such file are removed, along
//     with the matching entry of every per-file list
//   - fasta paths are pointed at their copy in workDir when one exists
//   - useDotNetCore is forced to True
//   - numThreads is set to threads, or to the number of kept files when
//     threads is zero
func PatchDescriptor(src, dst, workDir string, threads int) (*DescriptorPatch, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(src); err != nil {
		return nil, fmt.Errorf("failed to parse MaxQuant descriptor %s: %w", src, err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("MaxQuant descriptor %s has no root element", src)
	}

	patch := &DescriptorPatch{}

	if filePaths := root.SelectElement("filePaths"); filePaths != nil {
		entries := filePaths.SelectElements("string")
		var dropped []int
		for i, el := range entries {
			original := strings.TrimSpace(el.Text())
			if original == "" {
				continue
			}
			local := filepath.Join(workDir, foreignBase(original))
			if exists(local) {
				el.SetText(local)
				patch.Kept = append(patch.Kept, local)
				continue
			}
			filePaths.RemoveChild(el)
			patch.Dropped = append(patch.Dropped, original)
			dropped = append(dropped, i)
		}
		pruneParallelLists(root, len(entries), dropped)
	}

	for _, el := range append(
		root.FindElements("fastaFiles/FastaFileInfo/fastaFilePath"),
		root.FindElements("fastaFiles/string")...,
	) {
		original := strings.TrimSpace(el.Text())
		if original == "" {
			continue
		}
		if local := filepath.Join(workDir, foreignBase(original)); exists(local) {
			el.SetText(local)
		}
	}

	setChildText(root, "useDotNetCore", "True")

	patch.Threads = threads
	if threads == 0 && len(patch.Kept) != 0 {
		patch.Threads = len(patch.Kept)
	}
	setChildText(root, "numThreads", strconv.Itoa(patch.Threads))

	if err := doc.WriteToFile(dst); err != nil {
		return nil, fmt.Errorf("failed to write MaxQuant descriptor %s: %w", dst, err)
	}
	return patch, nil
}

// pruneParallelLists removes the dropped indices from every per-file list that
// has the same length as filePaths had.
func pruneParallelLists(root *etree.Element, count int, dropped []int) {
	if len(dropped) == 0 {
		return
	}
	for _, name := range perFileLists {
		list := root.SelectElement(name)
		if list == nil {
			continue
		}
		children := list.ChildElements()
		if len(children) != count {
			continue
		}
		for _, i := range dropped {
			list.RemoveChild(children[i])
		}
	}
}

func setChildText(parent *etree.Element, tag, text string) {
	el := parent.SelectElement(tag)
	if el == nil {
		el = parent.CreateElement(tag)
	}
	el.SetText(text)
}

// foreignBase returns the last element of a path written on either Windows or
// a POSIX host.
func foreignBase(p string) string {
	if i := strings.LastIndexAny(p, `\/`); i >= 0 {
		return p[i+1:]
	}
	return p
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
