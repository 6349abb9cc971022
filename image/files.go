// Copyright 2025 Harald Albrecht.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package image

import (
	"fmt"

	"github.com/checkpoint-restore/go-criu/v7/crit/images/fdinfo"
)

// LoadFiles reads the regular file table of the checkpoint, as needed for
// resolving file-backed mappings. Calling LoadFiles is optional, as the file
// table is otherwise read on first demand.
func (d *Dir) LoadFiles() error {
	if d.files != nil {
		return nil
	}
	entries, err := readAll(d, filesImg, filesMagic, &fdinfo.FileEntry{})
	if err != nil {
		return err
	}
	files := make(map[uint32]string, len(entries))
	for _, entry := range entries {
		if entry.GetType() != fdinfo.FdTypes_REG || entry.GetReg() == nil {
			continue
		}
		files[entry.GetId()] = entry.GetReg().GetName()
	}
	d.files = files
	return nil
}

// mappedName returns the path name of the regular file with the specified id.
func (d *Dir) mappedName(id uint32) (string, error) {
	if err := d.LoadFiles(); err != nil {
		return "", err
	}
	name, ok := d.files[id]
	if !ok {
		return "", fmt.Errorf("%w: %s: no regular file with id %d", ErrFormat, filesImg, id)
	}
	return name, nil
}
