package archive

import "fmt"

// Parquet physical types (parquet.thrift Type enum), limited to the values
// this reader needs to render.
const (
	parquetBoolean           = 0
	parquetInt32             = 1
	parquetInt64             = 2
	parquetInt96             = 3
	parquetFloat             = 4
	parquetDouble            = 5
	parquetByteArray         = 6
	parquetFixedLenByteArray = 7
)

const (
	repetitionRequired = 0
	repetitionOptional = 1
	repetitionRepeated = 2
)

const (
	codecUncompressed = 0
	codecSnappy       = 1
	codecGzip         = 2
)

const (
	encodingPlain           = 0
	encodingPlainDictionary = 2
	encodingRLE             = 3
	encodingRLEDictionary   = 8
)

const (
	pageTypeData       = 0
	pageTypeDictionary = 2
	pageTypeDataV2     = 3
)

// ConvertedType values (parquet.thrift ConvertedType enum) this reader
// needs to tell a LIST or MAP logical-type wrapper group apart from a
// plain nested struct group.
const (
	convertedUTF8         = 0
	convertedMap          = 1
	convertedMapKeyValue  = 2
	convertedList         = 3
)

// isListOrMapGroup reports whether a group schema element (NumChildren > 0)
// is a LIST or MAP logical-type wrapper rather than an ordinary struct.
func isListOrMapGroup(convertedType int32) bool {
	switch convertedType {
	case convertedList, convertedMap, convertedMapKeyValue:
		return true
	default:
		return false
	}
}

// parquetSchemaElement mirrors the fields of Thrift's SchemaElement this
// reader interprets.
type parquetSchemaElement struct {
	Type           int32
	HasType        bool
	RepetitionType int32
	Name           string
	NumChildren    int32
	ConvertedType  int32
}

func typeName(t int32) string {
	switch t {
	case parquetBoolean:
		return "BOOLEAN"
	case parquetInt32:
		return "INT32"
	case parquetInt64:
		return "INT64"
	case parquetInt96:
		return "INT96"
	case parquetFloat:
		return "FLOAT"
	case parquetDouble:
		return "DOUBLE"
	case parquetByteArray:
		return "BYTE_ARRAY"
	case parquetFixedLenByteArray:
		return "FIXED_LEN_BYTE_ARRAY"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", t)
	}
}

type parquetStatistics struct {
	Min       []byte
	Max       []byte
	NullCount int64
	HasNull   bool
}

type parquetColumnMetaData struct {
	Type                 int32
	PathInSchema         []string
	Codec                int32
	NumValues            int64
	TotalUncompressedSize int64
	TotalCompressedSize  int64
	DataPageOffset       int64
	Statistics           parquetStatistics
}

type parquetColumnChunk struct {
	MetaData parquetColumnMetaData
}

type parquetRowGroup struct {
	Columns []parquetColumnChunk
	NumRows int64
}

type parquetFileMetaData struct {
	Schema     []parquetSchemaElement
	NumRows    int64
	RowGroups  []parquetRowGroup
}

func parseParquetFileMetaData(buf []byte) (*parquetFileMetaData, error) {
	r := newThriftReader(buf)
	r.structBegin()
	defer r.structEnd()

	meta := &parquetFileMetaData{}
	for {
		f, err := r.readFieldBegin()
		if err != nil {
			return nil, err
		}
		if f.typ == tCompactStop {
			break
		}
		switch f.id {
		case 2: // schema
			elems, err := parseSchemaList(r)
			if err != nil {
				return nil, err
			}
			meta.Schema = elems
		case 3: // num_rows
			v, err := r.readI64()
			if err != nil {
				return nil, err
			}
			meta.NumRows = v
		case 4: // row_groups
			groups, err := parseRowGroupList(r)
			if err != nil {
				return nil, err
			}
			meta.RowGroups = groups
		default:
			if err := r.skip(f.typ); err != nil {
				return nil, err
			}
		}
	}
	return meta, nil
}

func parseSchemaList(r *thriftReader) ([]parquetSchemaElement, error) {
	elemType, size, err := r.listHeader()
	if err != nil {
		return nil, err
	}
	if elemType != tCompactStruct {
		return nil, fmt.Errorf("parquet: schema list element type = %d, want struct", elemType)
	}
	out := make([]parquetSchemaElement, 0, size)
	for i := 0; i < size; i++ {
		el, err := parseSchemaElement(r)
		if err != nil {
			return nil, err
		}
		out = append(out, el)
	}
	return out, nil
}

func parseSchemaElement(r *thriftReader) (parquetSchemaElement, error) {
	r.structBegin()
	defer r.structEnd()
	var el parquetSchemaElement
	for {
		f, err := r.readFieldBegin()
		if err != nil {
			return el, err
		}
		if f.typ == tCompactStop {
			break
		}
		switch f.id {
		case 1:
			v, err := r.readI32()
			if err != nil {
				return el, err
			}
			el.Type = v
			el.HasType = true
		case 3:
			v, err := r.readI32()
			if err != nil {
				return el, err
			}
			el.RepetitionType = v
		case 4:
			s, err := r.readString()
			if err != nil {
				return el, err
			}
			el.Name = s
		case 5:
			v, err := r.readI32()
			if err != nil {
				return el, err
			}
			el.NumChildren = v
		case 6:
			v, err := r.readI32()
			if err != nil {
				return el, err
			}
			el.ConvertedType = v
		default:
			if err := r.skip(f.typ); err != nil {
				return el, err
			}
		}
	}
	return el, nil
}

func parseRowGroupList(r *thriftReader) ([]parquetRowGroup, error) {
	elemType, size, err := r.listHeader()
	if err != nil {
		return nil, err
	}
	if elemType != tCompactStruct {
		return nil, fmt.Errorf("parquet: row_groups list element type = %d, want struct", elemType)
	}
	out := make([]parquetRowGroup, 0, size)
	for i := 0; i < size; i++ {
		rg, err := parseRowGroup(r)
		if err != nil {
			return nil, err
		}
		out = append(out, rg)
	}
	return out, nil
}

func parseRowGroup(r *thriftReader) (parquetRowGroup, error) {
	r.structBegin()
	defer r.structEnd()
	var rg parquetRowGroup
	for {
		f, err := r.readFieldBegin()
		if err != nil {
			return rg, err
		}
		if f.typ == tCompactStop {
			break
		}
		switch f.id {
		case 1:
			cols, err := parseColumnChunkList(r)
			if err != nil {
				return rg, err
			}
			rg.Columns = cols
		case 3:
			v, err := r.readI64()
			if err != nil {
				return rg, err
			}
			rg.NumRows = v
		default:
			if err := r.skip(f.typ); err != nil {
				return rg, err
			}
		}
	}
	return rg, nil
}

func parseColumnChunkList(r *thriftReader) ([]parquetColumnChunk, error) {
	elemType, size, err := r.listHeader()
	if err != nil {
		return nil, err
	}
	if elemType != tCompactStruct {
		return nil, fmt.Errorf("parquet: columns list element type = %d, want struct", elemType)
	}
	out := make([]parquetColumnChunk, 0, size)
	for i := 0; i < size; i++ {
		cc, err := parseColumnChunk(r)
		if err != nil {
			return nil, err
		}
		out = append(out, cc)
	}
	return out, nil
}

func parseColumnChunk(r *thriftReader) (parquetColumnChunk, error) {
	r.structBegin()
	defer r.structEnd()
	var cc parquetColumnChunk
	for {
		f, err := r.readFieldBegin()
		if err != nil {
			return cc, err
		}
		if f.typ == tCompactStop {
			break
		}
		switch f.id {
		case 3:
			md, err := parseColumnMetaData(r)
			if err != nil {
				return cc, err
			}
			cc.MetaData = md
		default:
			if err := r.skip(f.typ); err != nil {
				return cc, err
			}
		}
	}
	return cc, nil
}

func parseColumnMetaData(r *thriftReader) (parquetColumnMetaData, error) {
	r.structBegin()
	defer r.structEnd()
	var md parquetColumnMetaData
	for {
		f, err := r.readFieldBegin()
		if err != nil {
			return md, err
		}
		if f.typ == tCompactStop {
			break
		}
		switch f.id {
		case 1:
			v, err := r.readI32()
			if err != nil {
				return md, err
			}
			md.Type = v
		case 3:
			paths, err := parseStringList(r)
			if err != nil {
				return md, err
			}
			md.PathInSchema = paths
		case 4:
			v, err := r.readI32()
			if err != nil {
				return md, err
			}
			md.Codec = v
		case 5:
			v, err := r.readI64()
			if err != nil {
				return md, err
			}
			md.NumValues = v
		case 6:
			v, err := r.readI64()
			if err != nil {
				return md, err
			}
			md.TotalUncompressedSize = v
		case 7:
			v, err := r.readI64()
			if err != nil {
				return md, err
			}
			md.TotalCompressedSize = v
		case 9:
			v, err := r.readI64()
			if err != nil {
				return md, err
			}
			md.DataPageOffset = v
		case 12:
			stats, err := parseStatistics(r)
			if err != nil {
				return md, err
			}
			md.Statistics = stats
		default:
			if err := r.skip(f.typ); err != nil {
				return md, err
			}
		}
	}
	return md, nil
}

func parseStatistics(r *thriftReader) (parquetStatistics, error) {
	r.structBegin()
	defer r.structEnd()
	var st parquetStatistics
	for {
		f, err := r.readFieldBegin()
		if err != nil {
			return st, err
		}
		if f.typ == tCompactStop {
			break
		}
		switch f.id {
		case 1:
			b, err := r.readBinary()
			if err != nil {
				return st, err
			}
			st.Max = append([]byte(nil), b...)
		case 2:
			b, err := r.readBinary()
			if err != nil {
				return st, err
			}
			st.Min = append([]byte(nil), b...)
		case 3:
			v, err := r.readI64()
			if err != nil {
				return st, err
			}
			st.NullCount = v
			st.HasNull = true
		case 5:
			b, err := r.readBinary()
			if err != nil {
				return st, err
			}
			st.Max = append([]byte(nil), b...)
		case 6:
			b, err := r.readBinary()
			if err != nil {
				return st, err
			}
			st.Min = append([]byte(nil), b...)
		default:
			if err := r.skip(f.typ); err != nil {
				return st, err
			}
		}
	}
	return st, nil
}

func parseStringList(r *thriftReader) ([]string, error) {
	elemType, size, err := r.listHeader()
	if err != nil {
		return nil, err
	}
	if elemType != tCompactBinary {
		return nil, fmt.Errorf("parquet: string list element type = %d, want binary", elemType)
	}
	out := make([]string, 0, size)
	for i := 0; i < size; i++ {
		s, err := r.readString()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// parquetPageHeader mirrors the Thrift PageHeader fields this reader needs
// to walk past a page to its data payload.
type parquetPageHeader struct {
	Type                 int32
	UncompressedPageSize int32
	CompressedPageSize   int32
	DataPageNumValues    int32
	DataPageEncoding     int32
}

func parsePageHeader(r *thriftReader) (parquetPageHeader, error) {
	r.structBegin()
	defer r.structEnd()
	var ph parquetPageHeader
	for {
		f, err := r.readFieldBegin()
		if err != nil {
			return ph, err
		}
		if f.typ == tCompactStop {
			break
		}
		switch f.id {
		case 1:
			v, err := r.readI32()
			if err != nil {
				return ph, err
			}
			ph.Type = v
		case 2:
			v, err := r.readI32()
			if err != nil {
				return ph, err
			}
			ph.UncompressedPageSize = v
		case 3:
			v, err := r.readI32()
			if err != nil {
				return ph, err
			}
			ph.CompressedPageSize = v
		case 5:
			dph, err := parseDataPageHeader(r)
			if err != nil {
				return ph, err
			}
			ph.DataPageNumValues = dph.numValues
			ph.DataPageEncoding = dph.encoding
		default:
			if err := r.skip(f.typ); err != nil {
				return ph, err
			}
		}
	}
	return ph, nil
}

type dataPageHeaderFields struct {
	numValues int32
	encoding  int32
}

func parseDataPageHeader(r *thriftReader) (dataPageHeaderFields, error) {
	r.structBegin()
	defer r.structEnd()
	var d dataPageHeaderFields
	for {
		f, err := r.readFieldBegin()
		if err != nil {
			return d, err
		}
		if f.typ == tCompactStop {
			break
		}
		switch f.id {
		case 1:
			v, err := r.readI32()
			if err != nil {
				return d, err
			}
			d.numValues = v
		case 2:
			v, err := r.readI32()
			if err != nil {
				return d, err
			}
			d.encoding = v
		default:
			if err := r.skip(f.typ); err != nil {
				return d, err
			}
		}
	}
	return d, nil
}
