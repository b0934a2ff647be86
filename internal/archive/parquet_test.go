package archive

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"testing"

	"github.com/s3fs-fuse/s3vfs-go/internal/objectstore"
)

// thriftWriter is a minimal compact-protocol encoder, the mirror image of
// thriftReader, used only to synthesize footers for tests.
type thriftWriter struct {
	buf         bytes.Buffer
	lastFieldID []int16
}

func (w *thriftWriter) structBegin() { w.lastFieldID = append(w.lastFieldID, 0) }
func (w *thriftWriter) structEnd()   { w.lastFieldID = w.lastFieldID[:len(w.lastFieldID)-1] }

func (w *thriftWriter) writeVarint(v uint64) {
	for {
		if v < 0x80 {
			w.buf.WriteByte(byte(v))
			return
		}
		w.buf.WriteByte(byte(v&0x7F) | 0x80)
		v >>= 7
	}
}

func zigzagEncode(v int64) uint64 { return uint64((v << 1) ^ (v >> 63)) }

func (w *thriftWriter) fieldHeader(id int16, typ byte) {
	depth := len(w.lastFieldID) - 1
	delta := id - w.lastFieldID[depth]
	if delta > 0 && delta <= 15 {
		w.buf.WriteByte(byte(delta)<<4 | typ)
	} else {
		w.buf.WriteByte(typ)
		w.writeVarint(zigzagEncode(int64(id)))
	}
	w.lastFieldID[depth] = id
}

func (w *thriftWriter) stop() { w.buf.WriteByte(tCompactStop) }

func (w *thriftWriter) writeI32(id int16, v int32) {
	w.fieldHeader(id, tCompactI32)
	w.writeVarint(zigzagEncode(int64(v)))
}

func (w *thriftWriter) writeI64(id int16, v int64) {
	w.fieldHeader(id, tCompactI64)
	w.writeVarint(zigzagEncode(v))
}

func (w *thriftWriter) writeString(id int16, s string) {
	w.fieldHeader(id, tCompactBinary)
	w.writeVarint(uint64(len(s)))
	w.buf.WriteString(s)
}

func (w *thriftWriter) writeBinary(id int16, b []byte) {
	w.fieldHeader(id, tCompactBinary)
	w.writeVarint(uint64(len(b)))
	w.buf.Write(b)
}

func (w *thriftWriter) listHeader(id int16, elemType byte, size int) {
	w.fieldHeader(id, tCompactList)
	if size < 15 {
		w.buf.WriteByte(byte(size)<<4 | elemType)
	} else {
		w.buf.WriteByte(0xF0 | elemType)
		w.writeVarint(uint64(size))
	}
}

// buildTestFooter constructs a FileMetaData thrift struct for a two-column
// {id: INT64, name: BYTE_ARRAY} required, single-row-group parquet file.
func buildTestFooter(t *testing.T, dataPageOffsetID, dataPageOffsetName int64, compressedSizeID, compressedSizeName int64) []byte {
	t.Helper()
	w := &thriftWriter{}
	w.structBegin()
	defer w.structEnd()

	w.writeI32(1, 1) // version

	// schema: root message + 2 leaf fields
	w.listHeader(2, tCompactStruct, 3)
	writeSchemaElement(w, "schema", -1, 2, 2)     // root, num_children=2
	writeSchemaElement(w, "id", parquetInt64, repetitionRequired, 0)
	writeSchemaElement(w, "name", parquetByteArray, repetitionRequired, 0)

	w.writeI64(3, 2) // num_rows

	// row_groups: one group with two columns
	w.listHeader(4, tCompactStruct, 1)
	writeRowGroup(t, w, dataPageOffsetID, dataPageOffsetName, compressedSizeID, compressedSizeName)

	w.stop()
	return w.buf.Bytes()
}

func writeSchemaElement(w *thriftWriter, name string, typ int32, repetition int32, numChildren int32) {
	w.structBegin()
	defer w.structEnd()
	if typ >= 0 {
		w.writeI32(1, typ)
	}
	w.writeI32(3, repetition)
	w.writeString(4, name)
	if numChildren > 0 {
		w.writeI32(5, numChildren)
	}
	w.stop()
}

// writeSchemaElementConverted is writeSchemaElement plus a ConvertedType
// field, used to mark a group as a LIST/MAP logical-type wrapper.
func writeSchemaElementConverted(w *thriftWriter, name string, typ int32, repetition int32, numChildren int32, convertedType int32) {
	w.structBegin()
	defer w.structEnd()
	if typ >= 0 {
		w.writeI32(1, typ)
	}
	w.writeI32(3, repetition)
	w.writeString(4, name)
	if numChildren > 0 {
		w.writeI32(5, numChildren)
	}
	w.writeI32(6, convertedType)
	w.stop()
}

// buildNestedTestFooter constructs a FileMetaData thrift struct for a
// schema with a nested struct field (profile) holding a plain leaf (age)
// and a LIST-wrapped leaf (tags), backed by two physical columns.
func buildNestedTestFooter(t *testing.T, ageOffset, tagOffset, ageCompressedSize, tagCompressedSize int64) []byte {
	t.Helper()
	w := &thriftWriter{}
	w.structBegin()
	defer w.structEnd()

	w.writeI32(1, 1) // version

	// schema: root -> profile{age, tags{tag}}, 5 elements total pre-order.
	w.listHeader(2, tCompactStruct, 5)
	writeSchemaElement(w, "schema", -1, repetitionRequired, 1)
	writeSchemaElement(w, "profile", -1, repetitionRequired, 2)
	writeSchemaElement(w, "age", parquetInt32, repetitionRequired, 0)
	writeSchemaElementConverted(w, "tags", -1, repetitionRequired, 1, convertedList)
	writeSchemaElement(w, "tag", parquetByteArray, repetitionRequired, 0)

	w.writeI64(3, 2) // num_rows

	w.listHeader(4, tCompactStruct, 1)
	writeNestedRowGroup(w, ageOffset, tagOffset, ageCompressedSize, tagCompressedSize)

	w.stop()
	return w.buf.Bytes()
}

func writeNestedRowGroup(w *thriftWriter, ageOffset, tagOffset, ageCompressedSize, tagCompressedSize int64) {
	w.structBegin()
	defer w.structEnd()

	w.listHeader(1, tCompactStruct, 2)
	writeColumnChunk(w, parquetInt32, ageOffset, ageCompressedSize, []byte{10, 0, 0, 0}, []byte{20, 0, 0, 0})
	writeColumnChunk(w, parquetByteArray, tagOffset, tagCompressedSize, []byte("x"), []byte("y"))

	w.writeI64(3, 2) // num_rows
	w.stop()
}

func writeRowGroup(t *testing.T, w *thriftWriter, offsetID, offsetName, compID, compName int64) {
	w.structBegin()
	defer w.structEnd()

	w.listHeader(1, tCompactStruct, 2)
	writeColumnChunk(w, parquetInt64, offsetID, compID, []byte{1, 0, 0, 0, 0, 0, 0, 0}, []byte{2, 0, 0, 0, 0, 0, 0, 0})
	writeColumnChunk(w, parquetByteArray, offsetName, compName, []byte("a"), []byte("b"))

	w.writeI64(3, 2) // num_rows
	w.stop()
}

func writeColumnChunk(w *thriftWriter, typ int32, dataPageOffset, compressedSize int64, min, max []byte) {
	w.structBegin()
	defer w.structEnd()

	w.fieldHeader(3, tCompactStruct)
	w.structBegin()
	w.writeI32(1, typ)
	w.listHeader(3, tCompactBinary, 0)
	w.writeI32(4, codecUncompressed)
	w.writeI64(5, 2) // num_values
	w.writeI64(6, compressedSize)
	w.writeI64(7, compressedSize)
	w.writeI64(9, dataPageOffset)
	w.fieldHeader(12, tCompactStruct)
	w.structBegin()
	w.writeBinary(5, max)
	w.writeBinary(6, min)
	w.writeI64(3, 0)
	w.stop()
	w.structEnd()
	w.stop()
	w.structEnd()

	w.stop()
}

// buildPlainDataPage builds a thrift PageHeader followed by PLAIN-encoded
// values, forming one column chunk's on-disk bytes.
func buildPlainDataPage(t *testing.T, values []byte, numValues int32) []byte {
	t.Helper()
	w := &thriftWriter{}
	w.structBegin()
	w.writeI32(1, pageTypeData)
	w.writeI32(2, int32(len(values)))
	w.writeI32(3, int32(len(values)))

	w.fieldHeader(5, tCompactStruct)
	w.structBegin()
	w.writeI32(1, numValues)
	w.writeI32(2, encodingPlain)
	w.stop()
	w.structEnd()

	w.stop()
	w.structEnd()

	header := w.buf.Bytes()
	return append(header, values...)
}

func TestParquetHandlerBuildIndexAndSample(t *testing.T) {
	idValues := []byte{}
	idValues = binary.LittleEndian.AppendUint64(idValues, 1)
	idValues = binary.LittleEndian.AppendUint64(idValues, 2)
	idPage := buildPlainDataPage(t, idValues, 2)

	var nameValues bytes.Buffer
	writeByteArrayValue(&nameValues, "alice")
	writeByteArrayValue(&nameValues, "bob")
	namePage := buildPlainDataPage(t, nameValues.Bytes(), 2)

	var content bytes.Buffer
	content.WriteString(parquetMagic)
	idOffset := int64(content.Len())
	content.Write(idPage)
	nameOffset := int64(content.Len())
	content.Write(namePage)

	footer := buildTestFooter(t, idOffset, nameOffset, int64(len(idPage)), int64(len(namePage)))
	content.Write(footer)

	tail := make([]byte, 8)
	binary.LittleEndian.PutUint32(tail[0:4], uint32(len(footer)))
	copy(tail[4:8], parquetMagic)
	content.Write(tail)

	store := objectstore.NewFixture()
	store.Put("bucket", "data.parquet", content.Bytes())

	h := NewParquetHandler(DefaultSampleRows)
	idx, err := h.BuildIndex(context.Background(), store, "bucket", "data.parquet", nil)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}

	rc, err := h.Extract(context.Background(), store, "bucket", "data.parquet", idx, "_schema.txt", nil)
	if err != nil {
		t.Fatalf("Extract _schema.txt: %v", err)
	}
	schemaText, _ := io.ReadAll(rc)
	rc.Close()
	if !bytes.Contains(schemaText, []byte("id")) || !bytes.Contains(schemaText, []byte("name")) {
		t.Errorf("schema text missing column names: %s", schemaText)
	}

	rc2, err := h.Extract(context.Background(), store, "bucket", "data.parquet", idx, "columns/id", nil)
	if err != nil {
		t.Fatalf("Extract columns/id: %v", err)
	}
	idText, _ := io.ReadAll(rc2)
	rc2.Close()
	if string(idText) != "1\n2\n" {
		t.Errorf("columns/id = %q, want %q", idText, "1\n2\n")
	}

	rc3, err := h.Extract(context.Background(), store, "bucket", "data.parquet", idx, "columns/name", nil)
	if err != nil {
		t.Fatalf("Extract columns/name: %v", err)
	}
	nameText, _ := io.ReadAll(rc3)
	rc3.Close()
	if string(nameText) != "\"alice\"\n\"bob\"\n" {
		t.Errorf("columns/name = %q, want %q", nameText, "\"alice\"\n\"bob\"\n")
	}
}

func TestParquetHandlerNestedSchema(t *testing.T) {
	ageValues := []byte{10, 0, 0, 0, 20, 0, 0, 0}
	agePage := buildPlainDataPage(t, ageValues, 2)

	var tagValues bytes.Buffer
	writeByteArrayValue(&tagValues, "x")
	writeByteArrayValue(&tagValues, "y")
	tagPage := buildPlainDataPage(t, tagValues.Bytes(), 2)

	var content bytes.Buffer
	content.WriteString(parquetMagic)
	ageOffset := int64(content.Len())
	content.Write(agePage)
	tagOffset := int64(content.Len())
	content.Write(tagPage)

	footer := buildNestedTestFooter(t, ageOffset, tagOffset, int64(len(agePage)), int64(len(tagPage)))
	content.Write(footer)

	tail := make([]byte, 8)
	binary.LittleEndian.PutUint32(tail[0:4], uint32(len(footer)))
	copy(tail[4:8], parquetMagic)
	content.Write(tail)

	store := objectstore.NewFixture()
	store.Put("bucket", "nested.parquet", content.Bytes())

	h := NewParquetHandler(DefaultSampleRows)
	idx, err := h.BuildIndex(context.Background(), store, "bucket", "nested.parquet", nil)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}

	if _, ok := idx.FindEntry("columns/profile/"); !ok {
		t.Fatal("expected columns/profile/ intermediate directory to be navigable")
	}

	rc, err := h.Extract(context.Background(), store, "bucket", "nested.parquet", idx, "_schema.txt", nil)
	if err != nil {
		t.Fatalf("Extract _schema.txt: %v", err)
	}
	schemaText, _ := io.ReadAll(rc)
	rc.Close()
	if !bytes.Contains(schemaText, []byte("profile/age")) {
		t.Errorf("schema text missing nested column path: %s", schemaText)
	}
	if !bytes.Contains(schemaText, []byte("profile/tags : LIST")) {
		t.Errorf("schema text missing collapsed LIST leaf: %s", schemaText)
	}

	rc2, err := h.Extract(context.Background(), store, "bucket", "nested.parquet", idx, "columns/profile/age", nil)
	if err != nil {
		t.Fatalf("Extract columns/profile/age: %v", err)
	}
	ageText, _ := io.ReadAll(rc2)
	rc2.Close()
	if string(ageText) != "10\n20\n" {
		t.Errorf("columns/profile/age = %q, want %q", ageText, "10\n20\n")
	}

	rc3, err := h.Extract(context.Background(), store, "bucket", "nested.parquet", idx, "columns/profile/tags", nil)
	if err != nil {
		t.Fatalf("Extract columns/profile/tags: %v", err)
	}
	tagsText, _ := io.ReadAll(rc3)
	rc3.Close()
	if !bytes.Contains(tagsText, []byte("sampling not supported")) {
		t.Errorf("columns/profile/tags = %q, want a LIST placeholder", tagsText)
	}

	rc4, err := h.Extract(context.Background(), store, "bucket", "nested.parquet", idx, "stats/profile/tags", nil)
	if err != nil {
		t.Fatalf("Extract stats/profile/tags: %v", err)
	}
	statsText, _ := io.ReadAll(rc4)
	rc4.Close()
	if !bytes.Contains(statsText, []byte("not available")) {
		t.Errorf("stats/profile/tags = %q, want LIST/MAP stats placeholder", statsText)
	}
}

func writeByteArrayValue(buf *bytes.Buffer, s string) {
	var lenBytes [4]byte
	binary.LittleEndian.PutUint32(lenBytes[:], uint32(len(s)))
	buf.Write(lenBytes[:])
	buf.WriteString(s)
}
