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

package driver

import (
	"unsafe"

	"github.com/thediveo/ioctl"
)

// ioctl(2) “type” of the pseudo_mm control device.
const _PSEUDO_MM_IOC_MAGIC = 0x1c

// The kernel module defines its requests with pointer types as the size
// argument, so all request codes encode the size of a pointer, not the size of
// the parameter block pointed to.
const ptrSize = 8

// pseudo_mm control device requests.
var (
	PSEUDO_MM_IOC_REGISTER   = ioctl.IOW(_PSEUDO_MM_IOC_MAGIC, 0x00, ptrSize)
	PSEUDO_MM_IOC_CREATE     = ioctl.IOR(_PSEUDO_MM_IOC_MAGIC, 0x01, ptrSize)
	PSEUDO_MM_IOC_DELETE     = ioctl.IOW(_PSEUDO_MM_IOC_MAGIC, 0x02, ptrSize)
	PSEUDO_MM_IOC_ADD_MAP    = ioctl.IOW(_PSEUDO_MM_IOC_MAGIC, 0x03, ptrSize)
	PSEUDO_MM_IOC_SETUP_PT   = ioctl.IOW(_PSEUDO_MM_IOC_MAGIC, 0x04, ptrSize)
	PSEUDO_MM_IOC_ATTACH     = ioctl.IOW(_PSEUDO_MM_IOC_MAGIC, 0x05, ptrSize)
	PSEUDO_MM_IOC_BRING_BACK = ioctl.IOW(_PSEUDO_MM_IOC_MAGIC, 0x06, ptrSize)
)

// AllPseudoMMs is the id sentinel for deleting all pseudo address spaces.
const AllPseudoMMs = -1

// addMapParam matches struct pseudo_mm_add_map_param.
type addMapParam struct {
	id     int32
	start  uint64
	end    uint64
	prot   uint64
	flags  uint64
	fd     int32
	offset int64
}

var _ [56]byte = [unsafe.Sizeof(addMapParam{})]byte{}

// setupPTParam matches struct pseudo_mm_setup_pt_param; pgoff is in units of
// pool pages.
type setupPTParam struct {
	id    int32
	start uint64
	size  uint64
	pgoff uint64
}

var _ [32]byte = [unsafe.Sizeof(setupPTParam{})]byte{}

// attachParam matches struct pseudo_mm_attach_param.
type attachParam struct {
	pid int32
	id  int32
}

var _ [8]byte = [unsafe.Sizeof(attachParam{})]byte{}

// bringBackParam matches struct pseudo_mm_bring_back_param.
type bringBackParam struct {
	id    int32
	start uint64
	size  uint64
}

var _ [24]byte = [unsafe.Sizeof(bringBackParam{})]byte{}
