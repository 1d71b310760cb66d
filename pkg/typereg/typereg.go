package typereg

import (
	"strings"

	"github.com/nineking424/nificdc-sub002/pkg/types"
)

// UniversalType is a member of the closed cross-connector type taxonomy.
type UniversalType string

const (
	TypeString    UniversalType = "string"
	TypeText      UniversalType = "text"
	TypeInteger   UniversalType = "integer"
	TypeLong      UniversalType = "long"
	TypeFloat     UniversalType = "float"
	TypeDouble    UniversalType = "double"
	TypeDecimal   UniversalType = "decimal"
	TypeBoolean   UniversalType = "boolean"
	TypeDate      UniversalType = "date"
	TypeTime      UniversalType = "time"
	TypeDatetime  UniversalType = "datetime"
	TypeTimestamp UniversalType = "timestamp"
	TypeBinary    UniversalType = "binary"
	TypeArray     UniversalType = "array"
	TypeObject    UniversalType = "object"
	TypeMap       UniversalType = "map"
	TypeJSON      UniversalType = "json"
	TypeXML       UniversalType = "xml"
)

// Category buckets universal types for compatibility checks.
type Category string

const (
	CategoryText     Category = "text"
	CategoryNumeric  Category = "numeric"
	CategoryDatetime Category = "datetime"
	CategoryBoolean  Category = "boolean"
	CategoryBinary   Category = "binary"
	CategoryComplex  Category = "complex"
)

var categories = map[UniversalType]Category{
	TypeString:    CategoryText,
	TypeText:      CategoryText,
	TypeInteger:   CategoryNumeric,
	TypeLong:      CategoryNumeric,
	TypeFloat:     CategoryNumeric,
	TypeDouble:    CategoryNumeric,
	TypeDecimal:   CategoryNumeric,
	TypeBoolean:   CategoryBoolean,
	TypeDate:      CategoryDatetime,
	TypeTime:      CategoryDatetime,
	TypeDatetime:  CategoryDatetime,
	TypeTimestamp: CategoryDatetime,
	TypeBinary:    CategoryBinary,
	TypeArray:     CategoryComplex,
	TypeObject:    CategoryComplex,
	TypeMap:       CategoryComplex,
	TypeJSON:      CategoryComplex,
	TypeXML:       CategoryComplex,
}

// numericRank orders numeric types by range; widening conversions are
// compatible, narrowing ones are lossy.
var numericRank = map[UniversalType]int{
	TypeInteger: 1,
	TypeLong:    2,
	TypeFloat:   3,
	TypeDouble:  4,
	TypeDecimal: 5,
}

// Valid reports whether u is a member of the closed taxonomy.
func Valid(u UniversalType) bool {
	_, ok := categories[u]
	return ok
}

// CategoryOf returns the category bucket of a universal type.
func CategoryOf(u UniversalType) Category {
	return categories[u]
}

// IsCompatible reports whether a value of type from can be carried into a
// column of type to. Conversions inside the numeric, text and datetime
// families are all compatible; narrowing ones are additionally flagged by
// IsLossy. Any source is compatible with json since every value graph
// serializes.
func IsCompatible(from, to UniversalType) bool {
	if from == to {
		return true
	}
	if to == TypeJSON {
		return true
	}
	fc, tc := categories[from], categories[to]
	switch {
	case fc == CategoryNumeric && tc == CategoryNumeric:
		return true
	case fc == CategoryText && tc == CategoryText:
		return true
	case fc == CategoryDatetime && tc == CategoryDatetime:
		return true
	}
	return false
}

// IsLossy reports whether a direct from→to mapping is allowed but may lose
// information (narrowing numeric range, text→string truncation, or
// datetime precision differences).
func IsLossy(from, to UniversalType) bool {
	if from == to {
		return false
	}
	fc, tc := categories[from], categories[to]
	switch {
	case fc == CategoryNumeric && tc == CategoryNumeric:
		return numericRank[to] < numericRank[from]
	case from == TypeText && to == TypeString:
		return true
	case fc == CategoryDatetime && tc == CategoryDatetime:
		return from == TypeTimestamp && to != TypeTimestamp
	}
	return false
}

// ToUniversal maps a connector-native type name to its universal type.
// Unknown native types fall back to string for text-oriented connectors
// and json otherwise.
func ToUniversal(system types.SystemType, nativeType string) UniversalType {
	key := strings.ToLower(strings.TrimSpace(nativeType))
	// Strip parenthesised length/precision: varchar(255) → varchar.
	if i := strings.IndexByte(key, '('); i > 0 {
		key = key[:i]
	}
	if table, ok := toUniversal[system]; ok {
		if u, ok := table[key]; ok {
			return u
		}
	}
	if u, ok := commonNative[key]; ok {
		return u
	}
	switch system {
	case types.SystemDocument, types.SystemQueue, types.SystemHTTP:
		return TypeJSON
	default:
		return TypeString
	}
}

// FromUniversal maps a universal type to the preferred native type of a
// connector kind.
func FromUniversal(system types.SystemType, u UniversalType) string {
	if table, ok := fromUniversal[system]; ok {
		if n, ok := table[u]; ok {
			return n
		}
	}
	return string(u)
}

var commonNative = map[string]UniversalType{
	"string": TypeString, "text": TypeText, "int": TypeInteger,
	"integer": TypeInteger, "long": TypeLong, "bigint": TypeLong,
	"float": TypeFloat, "double": TypeDouble, "decimal": TypeDecimal,
	"numeric": TypeDecimal, "bool": TypeBoolean, "boolean": TypeBoolean,
	"date": TypeDate, "time": TypeTime, "datetime": TypeDatetime,
	"timestamp": TypeTimestamp, "binary": TypeBinary, "array": TypeArray,
	"object": TypeObject, "map": TypeMap, "json": TypeJSON, "xml": TypeXML,
}

var toUniversal = map[types.SystemType]map[string]UniversalType{
	types.SystemPostgres: {
		"smallint": TypeInteger, "int2": TypeInteger, "int4": TypeInteger,
		"int8": TypeLong, "serial": TypeInteger, "bigserial": TypeLong,
		"real": TypeFloat, "double precision": TypeDouble,
		"varchar": TypeString, "character varying": TypeString,
		"char": TypeString, "bpchar": TypeString,
		"bytea": TypeBinary, "timestamptz": TypeTimestamp,
		"timestamp with time zone": TypeTimestamp,
		"timestamp without time zone": TypeDatetime,
		"jsonb": TypeJSON, "uuid": TypeString,
	},
	types.SystemMySQL: {
		"tinyint": TypeInteger, "smallint": TypeInteger,
		"mediumint": TypeInteger, "varchar": TypeString, "char": TypeString,
		"tinytext": TypeText, "mediumtext": TypeText, "longtext": TypeText,
		"blob": TypeBinary, "tinyblob": TypeBinary, "mediumblob": TypeBinary,
		"longblob": TypeBinary, "varbinary": TypeBinary,
	},
	types.SystemOracle: {
		"number": TypeDecimal, "varchar2": TypeString, "nvarchar2": TypeString,
		"clob": TypeText, "nclob": TypeText, "blob": TypeBinary,
		"raw": TypeBinary, "binary_float": TypeFloat, "binary_double": TypeDouble,
	},
	types.SystemSQLServer: {
		"smallint": TypeInteger, "tinyint": TypeInteger,
		"nvarchar": TypeString, "varchar": TypeString, "nchar": TypeString,
		"ntext": TypeText, "money": TypeDecimal, "smallmoney": TypeDecimal,
		"real": TypeFloat, "datetime2": TypeDatetime,
		"datetimeoffset": TypeTimestamp, "varbinary": TypeBinary,
		"image": TypeBinary, "bit": TypeBoolean, "uniqueidentifier": TypeString,
	},
	types.SystemDocument: {
		"objectid": TypeString, "document": TypeObject, "number": TypeDouble,
	},
	types.SystemKeyValue: {
		"hash": TypeMap, "list": TypeArray, "set": TypeArray,
		"zset": TypeArray, "bitmap": TypeBinary,
	},
	types.SystemSearch: {
		"keyword": TypeString, "nested": TypeObject, "geo_point": TypeObject,
		"half_float": TypeFloat, "scaled_float": TypeFloat,
	},
	types.SystemObjectStore: {
		"blob": TypeBinary, "key": TypeString, "metadata": TypeMap,
	},
}

var fromUniversal = map[types.SystemType]map[UniversalType]string{
	types.SystemPostgres: {
		TypeString: "varchar", TypeText: "text", TypeInteger: "integer",
		TypeLong: "bigint", TypeFloat: "real", TypeDouble: "double precision",
		TypeDecimal: "numeric", TypeBoolean: "boolean", TypeDate: "date",
		TypeTime: "time", TypeDatetime: "timestamp", TypeTimestamp: "timestamptz",
		TypeBinary: "bytea", TypeArray: "jsonb", TypeObject: "jsonb",
		TypeMap: "jsonb", TypeJSON: "jsonb", TypeXML: "xml",
	},
	types.SystemMySQL: {
		TypeString: "varchar(255)", TypeText: "longtext", TypeInteger: "int",
		TypeLong: "bigint", TypeFloat: "float", TypeDouble: "double",
		TypeDecimal: "decimal", TypeBoolean: "tinyint(1)", TypeDate: "date",
		TypeTime: "time", TypeDatetime: "datetime", TypeTimestamp: "timestamp",
		TypeBinary: "blob", TypeArray: "json", TypeObject: "json",
		TypeMap: "json", TypeJSON: "json", TypeXML: "text",
	},
	types.SystemOracle: {
		TypeString: "varchar2(255)", TypeText: "clob", TypeInteger: "number(10)",
		TypeLong: "number(19)", TypeFloat: "binary_float", TypeDouble: "binary_double",
		TypeDecimal: "number", TypeBoolean: "number(1)", TypeDate: "date",
		TypeTime: "date", TypeDatetime: "date", TypeTimestamp: "timestamp",
		TypeBinary: "blob", TypeJSON: "clob", TypeXML: "xmltype",
	},
	types.SystemSQLServer: {
		TypeString: "nvarchar(255)", TypeText: "nvarchar(max)",
		TypeInteger: "int", TypeLong: "bigint", TypeFloat: "real",
		TypeDouble: "float", TypeDecimal: "decimal", TypeBoolean: "bit",
		TypeDate: "date", TypeTime: "time", TypeDatetime: "datetime2",
		TypeTimestamp: "datetimeoffset", TypeBinary: "varbinary(max)",
		TypeJSON: "nvarchar(max)", TypeXML: "xml",
	},
}
