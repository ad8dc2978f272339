// Package archive unpacks the zipped registry downloads. The drilling
// registry ships as a zip holding one tab-separated well list plus assorted
// documentation files; only the named member is wanted.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"
)

// maxMemberSize caps decompression to guard against zip bombs in a
// tampered download.
const maxMemberSize = 1 << 30

// ExtractMember returns the decompressed contents of the named member. The
// match ignores directory prefixes inside the archive and ASCII case, since
// the registry has shipped both "WellList.txt" and "WELLLIST.TXT" over the
// years.
func ExtractMember(archiveBytes []byte, member string) ([]byte, error) {
	if member == "" {
		return nil, fmt.Errorf("archive: member name is empty")
	}
	zr, err := zip.NewReader(bytes.NewReader(archiveBytes), int64(len(archiveBytes)))
	if err != nil {
		return nil, fmt.Errorf("archive: open zip: %w", err)
	}

	want := strings.ToLower(member)
	var names []string
	for _, f := range zr.File {
		base := strings.ToLower(path.Base(f.Name))
		names = append(names, f.Name)
		if base != want {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("archive: open member %s: %w", f.Name, err)
		}
		defer rc.Close()

		data, err := io.ReadAll(io.LimitReader(rc, maxMemberSize+1))
		if err != nil {
			return nil, fmt.Errorf("archive: read member %s: %w", f.Name, err)
		}
		if len(data) > maxMemberSize {
			return nil, fmt.Errorf("archive: member %s exceeds %d bytes", f.Name, maxMemberSize)
		}
		return data, nil
	}
	return nil, fmt.Errorf("archive: member %q not found (archive holds %s)",
		member, strings.Join(names, ", "))
}
