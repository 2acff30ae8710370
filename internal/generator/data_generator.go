package generator

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/ChrisCGH/generate-synthetic-data/pkg/models"
	"github.com/jaswdr/faker"
	"github.com/sirupsen/logrus"
)

var (
	enumRegex  = regexp.MustCompile(`^(?:enum|set)\((.+)\)$`)
	quoteRegex = regexp.MustCompile(`'((?:[^']|'')*)'`)
	bitRegex   = regexp.MustCompile(`bit\((\d+)\)`)
)

// DataGenerator fills the columns that no strategy controls with plausible
// fake values. Output is reproducible for a given seed.
type DataGenerator struct {
	Faker  faker.Faker
	Rand   *rand.Rand
	Now    time.Time
	Logger *logrus.Logger
}

// NewDataGenerator creates a generator seeded with seed
func NewDataGenerator(seed int64, logger *logrus.Logger) *DataGenerator {
	return &DataGenerator{
		Faker:  faker.NewWithSeed(rand.NewSource(seed)),
		Rand:   rand.New(rand.NewSource(seed)),
		Now:    time.Now(),
		Logger: logger,
	}
}

// FillRow completes assigned with generated values for every insertable
// column it does not already hold. Assigned values are never replaced and
// auto-increment columns are left to MySQL.
func (dg *DataGenerator) FillRow(columns []models.Column, assigned models.RowAssignment) models.RowAssignment {
	row := assigned.Clone()
	for _, col := range columns {
		if col.IsAutoIncrement() {
			continue
		}
		if _, ok := row[col.Name]; ok {
			continue
		}
		row[col.Name] = dg.GenerateData(col)
	}
	return row
}

// nameHint maps a column name fragment to a generator
type nameHint struct {
	fragments []string
	generate  func(dg *DataGenerator, name string) interface{}
}

var nameHints = []nameHint{
	{[]string{"email"}, func(dg *DataGenerator, _ string) interface{} { return dg.Faker.Internet().Email() }},
	{[]string{"phone"}, func(dg *DataGenerator, _ string) interface{} { return dg.Faker.Phone().Number() }},
	{[]string{"address"}, func(dg *DataGenerator, _ string) interface{} { return dg.Faker.Address().Address() }},
	{[]string{"city"}, func(dg *DataGenerator, _ string) interface{} { return dg.Faker.Address().City() }},
	{[]string{"country"}, func(dg *DataGenerator, _ string) interface{} { return dg.Faker.Address().Country() }},
	{[]string{"zip", "postal"}, func(dg *DataGenerator, _ string) interface{} { return dg.Faker.Address().PostCode() }},
	{[]string{"url", "website"}, func(dg *DataGenerator, _ string) interface{} { return dg.Faker.Internet().URL() }},
	{[]string{"password"}, func(dg *DataGenerator, _ string) interface{} { return dg.Faker.Internet().Password() }},
	{[]string{"token"}, func(dg *DataGenerator, _ string) interface{} { return dg.Faker.RandomStringWithLength(32) }},
	{[]string{"uuid"}, func(dg *DataGenerator, _ string) interface{} { return dg.Faker.UUID().V4() }},
	{[]string{"color"}, func(dg *DataGenerator, _ string) interface{} { return dg.Faker.Color().Hex() }},
	{[]string{"description", "summary"}, func(dg *DataGenerator, _ string) interface{} { return dg.Faker.Lorem().Paragraph(3) }},
	{[]string{"title"}, func(dg *DataGenerator, _ string) interface{} { return dg.Faker.Lorem().Sentence(4) }},
	{[]string{"name"}, func(dg *DataGenerator, name string) interface{} {
		switch {
		case strings.Contains(name, "first"):
			return dg.Faker.Person().FirstName()
		case strings.Contains(name, "last"):
			return dg.Faker.Person().LastName()
		case strings.Contains(name, "user"):
			return dg.Faker.Internet().User()
		case strings.Contains(name, "company"):
			return dg.Faker.Company().Name()
		}
		return dg.Faker.Person().Name()
	}},
}

// textual data types a name hint may fill
var textTypes = map[string]bool{
	"varchar": true, "char": true, "text": true, "tinytext": true, "mediumtext": true, "longtext": true,
}

// GenerateData generates a value for a column from its name and type
func (dg *DataGenerator) GenerateData(column models.Column) interface{} {
	name := strings.ToLower(column.Name)
	dataType := strings.ToLower(column.DataType)

	if textTypes[dataType] {
		for _, hint := range nameHints {
			for _, fragment := range hint.fragments {
				if strings.Contains(name, fragment) {
					return dg.truncate(hint.generate(dg, name), column)
				}
			}
		}
	}

	switch dataType {
	case "varchar", "char", "text", "tinytext", "mediumtext", "longtext":
		return dg.generateString(column)
	case "int", "tinyint", "smallint", "mediumint", "bigint":
		return dg.generateInteger(column)
	case "float", "double", "decimal":
		return dg.generateFloat(column)
	case "date":
		return dg.generateDateTime().Truncate(24 * time.Hour)
	case "time":
		return fmt.Sprintf("%02d:%02d:%02d", dg.Rand.Intn(24), dg.Rand.Intn(60), dg.Rand.Intn(60))
	case "datetime", "timestamp":
		return dg.generateDateTime()
	case "year":
		return 1970 + dg.Rand.Intn(dg.Now.Year()-1970+1)
	case "enum":
		return dg.pickEnum(column)
	case "set":
		return dg.pickSet(column)
	case "bit":
		return dg.generateBit(column)
	case "binary", "varbinary", "blob", "tinyblob", "mediumblob", "longblob":
		return dg.generateBytes(column)
	case "json":
		return dg.generateJSON(column)
	case "boolean", "bool":
		return dg.Rand.Intn(2) == 1
	default:
		dg.Logger.Warningf("No specific generator for type %s, using default string", dataType)
		return dg.Faker.Lorem().Word()
	}
}

func (dg *DataGenerator) truncate(v interface{}, column models.Column) interface{} {
	s, ok := v.(string)
	if !ok || column.CharMaxLength == nil || int64(len(s)) <= *column.CharMaxLength {
		return v
	}
	return s[:*column.CharMaxLength]
}

// generateString generates a string no longer than the column allows
func (dg *DataGenerator) generateString(column models.Column) string {
	var maxLength int64 = 100
	if column.CharMaxLength != nil && *column.CharMaxLength < maxLength {
		maxLength = *column.CharMaxLength
	}
	if maxLength < 1 {
		return ""
	}

	length := dg.Rand.Int63n(maxLength) + 1

	var s string
	switch {
	case length <= 5:
		s = dg.Faker.RandomStringWithLength(int(length))
	case length <= 10:
		s = dg.Faker.Lorem().Word()
	default:
		s = dg.Faker.Lorem().Sentence(int(length/10) + 1)
	}

	if int64(len(s)) > maxLength {
		s = s[:maxLength]
	}
	return s
}

// generateInteger generates an integer inside the column's range
func (dg *DataGenerator) generateInteger(column models.Column) interface{} {
	columnType := strings.ToLower(column.ColumnType)
	unsigned := strings.Contains(columnType, "unsigned")

	if strings.HasPrefix(columnType, "tinyint(1)") {
		return dg.Rand.Intn(2)
	}

	switch strings.ToLower(column.DataType) {
	case "tinyint":
		if unsigned {
			return dg.Rand.Intn(256)
		}
		return dg.Rand.Intn(256) - 128
	case "smallint":
		if unsigned {
			return dg.Rand.Intn(65536)
		}
		return dg.Rand.Intn(65536) - 32768
	case "mediumint":
		if unsigned {
			return dg.Rand.Intn(16777216)
		}
		return dg.Rand.Intn(16777216) - 8388608
	case "bigint":
		if unsigned {
			return dg.Rand.Uint64()
		}
		return dg.Rand.Int63()
	default:
		if unsigned {
			return dg.Rand.Uint32()
		}
		return dg.Rand.Int31()
	}
}

// generateFloat generates a float rounded to the column scale
func (dg *DataGenerator) generateFloat(column models.Column) float64 {
	value := dg.Rand.Float64() * 1000

	if column.NumericScale != nil {
		multiplier := 1.0
		for i := int64(0); i < *column.NumericScale; i++ {
			multiplier *= 10
		}
		value = float64(int64(value*multiplier)) / multiplier
	}

	return value
}

// generateDateTime generates a second-precision instant within five years of Now
func (dg *DataGenerator) generateDateTime() time.Time {
	offset := time.Duration(dg.Rand.Int63n(int64(5*365*24*time.Hour/time.Second))) * time.Second
	return dg.Now.Add(-offset).Truncate(time.Second)
}

// enumValues extracts the quoted members of an enum(...) or set(...) column type
func enumValues(columnType string) []string {
	matches := enumRegex.FindStringSubmatch(columnType)
	if len(matches) < 2 {
		return nil
	}

	var values []string
	for _, match := range quoteRegex.FindAllStringSubmatch(matches[1], -1) {
		values = append(values, strings.ReplaceAll(match[1], "''", "'"))
	}
	return values
}

func (dg *DataGenerator) pickEnum(column models.Column) string {
	values := enumValues(column.ColumnType)
	if len(values) == 0 {
		return ""
	}
	return values[dg.Rand.Intn(len(values))]
}

func (dg *DataGenerator) pickSet(column models.Column) string {
	values := enumValues(column.ColumnType)
	if len(values) == 0 {
		return ""
	}

	n := dg.Rand.Intn(len(values)) + 1
	var selected []string
	for _, idx := range dg.Rand.Perm(len(values))[:n] {
		selected = append(selected, values[idx])
	}
	return strings.Join(selected, ",")
}

func (dg *DataGenerator) generateBit(column models.Column) interface{} {
	length := 1
	if matches := bitRegex.FindStringSubmatch(column.ColumnType); len(matches) >= 2 {
		fmt.Sscanf(matches[1], "%d", &length)
	}

	if length == 1 {
		return dg.Rand.Intn(2)
	}

	data := make([]byte, (length+7)/8)
	dg.Rand.Read(data)
	return data
}

func (dg *DataGenerator) generateBytes(column models.Column) []byte {
	var length int64 = 16
	if column.CharMaxLength != nil && *column.CharMaxLength < 256 {
		length = *column.CharMaxLength
	}

	data := make([]byte, length)
	dg.Rand.Read(data)
	return data
}

// generateJSON generates a small JSON document
func (dg *DataGenerator) generateJSON(column models.Column) string {
	name := strings.ToLower(column.Name)

	var data interface{}
	switch {
	case strings.Contains(name, "address"):
		data = map[string]interface{}{
			"street":  dg.Faker.Address().StreetAddress(),
			"city":    dg.Faker.Address().City(),
			"zipCode": dg.Faker.Address().PostCode(),
		}
	case strings.Contains(name, "tags"):
		var tags []string
		for i := 0; i < dg.Rand.Intn(3)+1; i++ {
			tags = append(tags, dg.Faker.Lorem().Word())
		}
		data = tags
	default:
		data = map[string]interface{}{
			"id":      dg.Rand.Intn(1000),
			"name":    dg.Faker.Lorem().Word(),
			"enabled": dg.Rand.Intn(2) == 1,
		}
	}

	jsonBytes, err := json.Marshal(data)
	if err != nil {
		dg.Logger.Errorf("Error generating JSON: %v", err)
		return "{}"
	}

	return string(jsonBytes)
}
