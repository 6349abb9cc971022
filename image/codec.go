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
	"errors"
	"fmt"
	"os"

	"github.com/checkpoint-restore/go-criu/v7/crit"
	"google.golang.org/protobuf/proto"
)

// ErrFormat signals a malformed image.
var ErrFormat = errors.New("malformed image")

// Image magic names, as known to [magic.LoadMagic].
//
// [magic.LoadMagic]: https://pkg.go.dev/github.com/checkpoint-restore/go-criu/v7/magic#LoadMagic
const (
	inventoryMagic = "INVENTORY"
	pstreeMagic    = "PSTREE"
	idsMagic       = "IDS"
	mmMagic        = "MM"
	pagemapMagic   = "PAGEMAP"
	filesMagic     = "FILES"
)

// decodeImage decodes the image read from f, expecting the specified magic.
// Except for pagemaps, all entries are decoded into clones of entryType.
func decodeImage(f *os.File, name string, magic string, entryType proto.Message) ([]proto.Message, error) {
	img, err := crit.New(f, nil, "", false, false).Decode(entryType)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFormat, name, err)
	}
	if img.Magic != magic {
		return nil, fmt.Errorf("%w: %s: unexpected magic %s", ErrFormat, name, img.Magic)
	}
	entries := make([]proto.Message, 0, len(img.Entries))
	for _, entry := range img.Entries {
		entries = append(entries, entry.Message)
	}
	return entries, nil
}

// decodeAll decodes all entries of the image read from f.
func decodeAll[T proto.Message](f *os.File, name string, magic string, entryType T) ([]T, error) {
	msgs, err := decodeImage(f, name, magic, entryType)
	if err != nil {
		return nil, err
	}
	entries := make([]T, 0, len(msgs))
	for _, msg := range msgs {
		entry, ok := msg.(T)
		if !ok {
			return nil, fmt.Errorf("%w: %s: unexpected entry %T", ErrFormat, name, msg)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// encode writes an image with the specified magic and entries to f.
func encode(f *os.File, magic string, entries ...proto.Message) error {
	img := &crit.CriuImage{
		Magic:   magic,
		Entries: make([]*crit.CriuEntry, 0, len(entries)),
	}
	for _, entry := range entries {
		img.Entries = append(img.Entries, &crit.CriuEntry{Message: entry})
	}
	return crit.New(nil, f, "", false, false).Encode(img)
}
