package extractor

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"

	"github.com/loonghao/msvc-kit/src/internal/kiterrors"
)

// A hand-rolled reader for the Microsoft Cabinet (MS-CAB) format. Nothing
// in the retrieved corpus, or the wider Go ecosystem at the time this was
// written, parses CAB files; see DESIGN.md for why this is the one format
// extractor built directly against the file-format spec instead of a
// library. Scope is deliberately narrow: single-cabinet archives (no
// szCabinetNext chaining) with folders compressed as either STORE or
// MSZIP, which covers every CAB payload the Windows SDK and MSVC toolset
// publish.

const (
	compressTypeNone  = 0x0000
	compressTypeMSZIP = 0x0001

	flagPrevCabinet   = 0x0001
	flagNextCabinet   = 0x0002
	flagReservePresent = 0x0004

	mszipSignature = "CK"
)

type cabHeader struct {
	cbCabinet  uint32
	coffFiles  uint32
	cFolders   uint16
	cFiles     uint16
	flags      uint16
	cbCFHeader uint16
	cbCFFolder uint8
	cbCFData   uint8
}

type cabFolder struct {
	coffCabStart uint32
	cCFData      uint16
	typeCompress uint16
}

type cabFile struct {
	cbFile          uint32
	uoffFolderStart uint32
	iFolder         uint16
	attribs         uint16
	name            string
}

// extractCab extracts a single-cabinet CAB file's contents into destDir.
func extractCab(archivePath, destDir string, filter func(string) bool) error {
	raw, err := os.ReadFile(archivePath)
	if err != nil {
		return kiterrors.Wrap(kiterrors.Io, "read cab archive", err)
	}

	hdr, folders, files, err := parseCabStructure(raw)
	if err != nil {
		return err
	}
	if hdr.flags&flagNextCabinet != 0 {
		return kiterrors.New(kiterrors.Extraction, "multi-cabinet CAB chains are not supported: "+archivePath)
	}

	folderData := make([][]byte, len(folders))
	for i, f := range folders {
		data, err := decompressFolder(raw, f)
		if err != nil {
			return kiterrors.Wrap(kiterrors.Extraction, "decompress cab folder", err)
		}
		folderData[i] = data
	}

	for _, f := range files {
		name := sanitizeArchivePath(strings.ReplaceAll(f.name, "\\", "/"))
		if name == "" {
			continue
		}
		if filter != nil && !filter(name) {
			continue
		}
		if int(f.iFolder) >= len(folderData) {
			return kiterrors.New(kiterrors.Extraction, "cab file references out-of-range folder")
		}
		data := folderData[f.iFolder]
		start := int(f.uoffFolderStart)
		end := start + int(f.cbFile)
		if start < 0 || end > len(data) || start > end {
			return kiterrors.New(kiterrors.Extraction, "cab file extent out of bounds for "+f.name)
		}

		target := filepath.Join(destDir, name)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return kiterrors.Wrap(kiterrors.Extraction, "create directory for cab entry", err)
		}
		if err := os.WriteFile(target, data[start:end], 0o644); err != nil {
			return kiterrors.Wrap(kiterrors.Extraction, "write cab entry "+f.name, err)
		}
	}
	return nil
}

func parseCabStructure(raw []byte) (cabHeader, []cabFolder, []cabFile, error) {
	if len(raw) < 36 || string(raw[0:4]) != "MSCF" {
		return cabHeader{}, nil, nil, kiterrors.New(kiterrors.Extraction, "not a valid CAB file (missing MSCF signature)")
	}

	var hdr cabHeader
	hdr.cbCabinet = binary.LittleEndian.Uint32(raw[8:12])
	hdr.coffFiles = binary.LittleEndian.Uint32(raw[16:20])
	hdr.cFolders = binary.LittleEndian.Uint16(raw[26:28])
	hdr.cFiles = binary.LittleEndian.Uint16(raw[28:30])
	hdr.flags = binary.LittleEndian.Uint16(raw[30:32])

	off := 36
	if hdr.flags&flagReservePresent != 0 {
		if len(raw) < off+4 {
			return hdr, nil, nil, kiterrors.New(kiterrors.Extraction, "truncated CAB reserve sizes")
		}
		hdr.cbCFHeader = binary.LittleEndian.Uint16(raw[off : off+2])
		hdr.cbCFFolder = raw[off+2]
		hdr.cbCFData = raw[off+3]
		off += 4 + int(hdr.cbCFHeader)
	}
	if hdr.flags&flagPrevCabinet != 0 {
		off = skipCString(raw, off) // szCabinetPrev
		off = skipCString(raw, off) // szDiskPrev
	}
	if hdr.flags&flagNextCabinet != 0 {
		off = skipCString(raw, off) // szCabinetNext
		off = skipCString(raw, off) // szDiskNext
	}

	folders := make([]cabFolder, 0, hdr.cFolders)
	for i := 0; i < int(hdr.cFolders); i++ {
		if len(raw) < off+8 {
			return hdr, nil, nil, kiterrors.New(kiterrors.Extraction, "truncated CAB folder entry")
		}
		f := cabFolder{
			coffCabStart: binary.LittleEndian.Uint32(raw[off : off+4]),
			cCFData:      binary.LittleEndian.Uint16(raw[off+4 : off+6]),
			typeCompress: binary.LittleEndian.Uint16(raw[off+6 : off+8]),
		}
		off += 8 + int(hdr.cbCFFolder)
		folders = append(folders, f)
	}

	files := make([]cabFile, 0, hdr.cFiles)
	off = int(hdr.coffFiles)
	for i := 0; i < int(hdr.cFiles); i++ {
		if len(raw) < off+16 {
			return hdr, nil, nil, kiterrors.New(kiterrors.Extraction, "truncated CAB file entry")
		}
		f := cabFile{
			cbFile:          binary.LittleEndian.Uint32(raw[off : off+4]),
			uoffFolderStart: binary.LittleEndian.Uint32(raw[off+4 : off+8]),
			iFolder:         binary.LittleEndian.Uint16(raw[off+8 : off+10]),
			attribs:         binary.LittleEndian.Uint16(raw[off+14 : off+16]),
		}
		nameStart := off + 16
		nameEnd := skipCString(raw, nameStart)
		f.name = string(raw[nameStart : nameEnd-1])
		off = nameEnd
		files = append(files, f)
	}

	return hdr, folders, files, nil
}

func skipCString(raw []byte, off int) int {
	i := off
	for i < len(raw) && raw[i] != 0 {
		i++
	}
	return i + 1
}

// decompressFolder walks a folder's CFDATA blocks. For MSZIP, every
// block's compressed payload (after its 2-byte "CK" signature) belongs to
// one continuous deflate stream spanning the whole folder, so the blocks
// are concatenated and run through a single flate.Reader rather than
// decoded independently.
func decompressFolder(raw []byte, f cabFolder) ([]byte, error) {
	off := int(f.coffCabStart)
	var compressed bytes.Buffer
	var out bytes.Buffer
	plain := f.typeCompress&0x000F == compressTypeNone

	switch f.typeCompress & 0x000F {
	case compressTypeNone, compressTypeMSZIP:
	case 0x0002:
		return nil, kiterrors.New(kiterrors.Extraction, "unsupported CAB compression method: Quantum")
	case 0x0003:
		return nil, kiterrors.New(kiterrors.Extraction, "unsupported CAB compression method: LZX")
	default:
		return nil, kiterrors.New(kiterrors.Extraction, "unsupported CAB compression method")
	}

	for i := 0; i < int(f.cCFData); i++ {
		if len(raw) < off+8 {
			return nil, kiterrors.New(kiterrors.Extraction, "truncated CFDATA block")
		}
		cbData := binary.LittleEndian.Uint16(raw[off+4 : off+6])
		cbUncomp := binary.LittleEndian.Uint16(raw[off+6 : off+8])
		dataStart := off + 8
		dataEnd := dataStart + int(cbData)
		if dataEnd > len(raw) {
			return nil, kiterrors.New(kiterrors.Extraction, "CFDATA block extends past end of file")
		}
		block := raw[dataStart:dataEnd]

		if plain {
			out.Write(block[:cbUncomp])
		} else {
			if len(block) < 2 || string(block[:2]) != mszipSignature {
				return nil, kiterrors.New(kiterrors.Extraction, "CFDATA block missing MSZIP signature")
			}
			compressed.Write(block[2:])
		}
		off = dataEnd
	}

	if plain {
		return out.Bytes(), nil
	}

	fr := flate.NewReader(bufio.NewReader(&compressed))
	defer fr.Close()
	if _, err := io.Copy(&out, fr); err != nil {
		return nil, kiterrors.Wrap(kiterrors.Extraction, "inflate MSZIP folder", err)
	}
	return out.Bytes(), nil
}
