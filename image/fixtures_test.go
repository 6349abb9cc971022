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
	"os"
	"path/filepath"

	core "github.com/checkpoint-restore/go-criu/v7/crit/images/criu-core"
	"github.com/checkpoint-restore/go-criu/v7/crit/images/fdinfo"
	"github.com/checkpoint-restore/go-criu/v7/crit/images/fown"
	"github.com/checkpoint-restore/go-criu/v7/crit/images/inventory"
	"github.com/checkpoint-restore/go-criu/v7/crit/images/mm"
	"github.com/checkpoint-restore/go-criu/v7/crit/images/pagemap"
	"github.com/checkpoint-restore/go-criu/v7/crit/images/pstree"
	"github.com/checkpoint-restore/go-criu/v7/crit/images/regfile"
	criuvma "github.com/checkpoint-restore/go-criu/v7/crit/images/vma"
	"google.golang.org/protobuf/proto"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// writeImage writes an image with the passed entries into dir.
func writeImage(dir, name string, magic string, entries ...proto.Message) {
	GinkgoHelper()
	f, err := os.Create(filepath.Join(dir, name))
	Expect(err).NotTo(HaveOccurred())
	defer func() { _ = f.Close() }()
	Expect(encode(f, magic, entries...)).To(Succeed())
}

func kobjIDs(mntnsid uint32) *core.TaskKobjIdsEntry {
	return &core.TaskKobjIdsEntry{
		VmId:      proto.Uint32(1),
		FilesId:   proto.Uint32(1),
		FsId:      proto.Uint32(1),
		SighandId: proto.Uint32(1),
		MntNsId:   proto.Uint32(mntnsid),
	}
}

func inventoryEntry(version uint32, mntnsid uint32) *inventory.InventoryEntry {
	return &inventory.InventoryEntry{
		ImgVersion: proto.Uint32(version),
		RootIds:    kobjIDs(mntnsid),
	}
}

func pstreeEntry(pid, ppid uint32, threads ...uint32) *pstree.PstreeEntry {
	return &pstree.PstreeEntry{
		Pid:     proto.Uint32(pid),
		Ppid:    proto.Uint32(ppid),
		Pgid:    proto.Uint32(pid),
		Sid:     proto.Uint32(pid),
		Threads: threads,
	}
}

func vmaEntry(start, end uint64, status uint32) *criuvma.VmaEntry {
	return &criuvma.VmaEntry{
		Start:  proto.Uint64(start),
		End:    proto.Uint64(end),
		Pgoff:  proto.Uint64(0),
		Shmid:  proto.Uint64(0),
		Prot:   proto.Uint32(1),
		Flags:  proto.Uint32(2),
		Status: proto.Uint32(status),
		Fd:     proto.Int64(-1),
		Madv:   proto.Uint64(0x42),
	}
}

func mmEntry(vmas ...*criuvma.VmaEntry) *mm.MmEntry {
	return &mm.MmEntry{
		MmStartCode:  proto.Uint64(0x400000),
		MmEndCode:    proto.Uint64(0x401000),
		MmStartData:  proto.Uint64(0x600000),
		MmEndData:    proto.Uint64(0x601000),
		MmStartStack: proto.Uint64(0x7ffff000),
		MmStartBrk:   proto.Uint64(0x602000),
		MmBrk:        proto.Uint64(0x603000),
		MmArgStart:   proto.Uint64(0x7fffe000),
		MmArgEnd:     proto.Uint64(0x7fffe100),
		MmEnvStart:   proto.Uint64(0x7fffe100),
		MmEnvEnd:     proto.Uint64(0x7fffe200),
		ExeFileId:    proto.Uint32(7),
		Vmas:         vmas,
	}
}

func pagemapHead(pagesid uint32) *pagemap.PagemapHead {
	return &pagemap.PagemapHead{PagesId: proto.Uint32(pagesid)}
}

func pagemapEntry(vaddr uint64, pages uint32, flags *uint32, inparent bool) *pagemap.PagemapEntry {
	entry := &pagemap.PagemapEntry{
		Vaddr:   proto.Uint64(vaddr),
		NrPages: proto.Uint32(pages),
		Flags:   flags,
	}
	if inparent {
		entry.InParent = proto.Bool(true)
	}
	return entry
}

func regFileEntry(id uint32, name string) *fdinfo.FileEntry {
	return &fdinfo.FileEntry{
		Type: fdinfo.FdTypes_REG.Enum(),
		Id:   proto.Uint32(id),
		Reg: &regfile.RegFileEntry{
			Id:    proto.Uint32(id),
			Flags: proto.Uint32(0),
			Pos:   proto.Uint64(0),
			Fown: &fown.FownEntry{
				Uid:     proto.Uint32(0),
				Euid:    proto.Uint32(0),
				Signum:  proto.Uint32(0),
				PidType: proto.Uint32(0),
				Pid:     proto.Uint32(0),
			},
			Name: proto.String(name),
		},
	}
}
