package workbook

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/matzehuels/workbookdeps/pkg/errors"
	"github.com/matzehuels/workbookdeps/pkg/formula"
)

// measureNames is the synthetic column Tableau adds for measure pivots.
const measureNames = ":Measure Names"

var zipMagic = []byte("PK\x03\x04")

// Load reads and normalizes the workbook at path.
func Load(path string) (*Workbook, error) {
	if !errors.HasWorkbookExtension(path) {
		return nil, errors.New(errors.ErrCodeInvalidFormat, "unsupported workbook extension %q (want .twb or .twbx)", filepath.Ext(path))
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "workbook %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidWorkbook, err, "open %s", path)
	}
	defer f.Close()
	return Read(f, filepath.Base(path))
}

// Read parses a workbook from r. The name is used for the workbook name and
// to detect packaged archives; zip content is detected regardless of name.
func Read(r io.Reader, name string) (*Workbook, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidWorkbook, err, "read %s", name)
	}
	if bytes.HasPrefix(data, zipMagic) || strings.EqualFold(filepath.Ext(name), ".twbx") {
		if data, err = extractTWB(data); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidWorkbook, err, "unpack %s", name)
		}
	}

	var doc xmlWorkbook
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidWorkbook, err, "parse %s", name)
	}

	wb := build(&doc)
	wb.Name = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	return wb, nil
}

// extractTWB returns the first .twb entry of a packaged workbook, preferring
// entries at the archive root.
func extractTWB(data []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	var pick *zip.File
	for _, f := range zr.File {
		if !strings.EqualFold(filepath.Ext(f.Name), ".twb") {
			continue
		}
		if pick == nil || (!strings.Contains(f.Name, "/") && strings.Contains(pick.Name, "/")) {
			pick = f
		}
	}
	if pick == nil {
		return nil, errors.New(errors.ErrCodeInvalidWorkbook, "archive contains no .twb entry")
	}
	rc, err := pick.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

type xmlWorkbook struct {
	XMLName     xml.Name        `xml:"workbook"`
	Datasources []xmlDatasource `xml:"datasources>datasource"`
	Worksheets  []xmlWorksheet  `xml:"worksheets>worksheet"`
}

type xmlDatasource struct {
	Name    string      `xml:"name,attr"`
	Caption string      `xml:"caption,attr"`
	Columns []xmlColumn `xml:"column"`
	Records []xmlRecord `xml:"connection>metadata-records>metadata-record"`
}

type xmlColumn struct {
	Name        string          `xml:"name,attr"`
	Caption     string          `xml:"caption,attr"`
	Datatype    string          `xml:"datatype,attr"`
	Role        string          `xml:"role,attr"`
	Type        string          `xml:"type,attr"`
	Hidden      string          `xml:"hidden,attr"`
	Calculation *xmlCalculation `xml:"calculation"`
	Desc        []string        `xml:"desc>formatted-text>run"`
}

type xmlCalculation struct {
	Class   string `xml:"class,attr"`
	Formula string `xml:"formula,attr"`
}

type xmlRecord struct {
	Class       string `xml:"class,attr"`
	LocalName   string `xml:"local-name"`
	LocalType   string `xml:"local-type"`
	Aggregation string `xml:"aggregation"`
}

type xmlWorksheet struct {
	Name         string            `xml:"name,attr"`
	Title        []string          `xml:"layout-options>title>formatted-text>run"`
	Dependencies []xmlDependencies `xml:"table>view>datasource-dependencies"`
}

type xmlDependencies struct {
	Datasource string `xml:"datasource,attr"`
	Columns    []struct {
		Name string `xml:"name,attr"`
	} `xml:"column"`
	Instances []struct {
		Column string `xml:"column,attr"`
	} `xml:"column-instance"`
}

type fieldKey struct{ source, name string }

func build(doc *xmlWorkbook) *Workbook {
	wb := &Workbook{}

	params := make(map[string]bool)
	for _, xds := range doc.Datasources {
		if xds.Name == ParametersDatasource {
			for _, c := range xds.Columns {
				params[Unbracket(c.Name)] = true
			}
		}
	}

	redirect := make(map[fieldKey]bool)
	for _, xds := range doc.Datasources {
		ds := Datasource{Name: xds.Name, Caption: xds.Caption}
		wb.Datasources = append(wb.Datasources, ds)

		index := make(map[string]int)
		var fields []Field
		add := func(f Field) {
			if i, dup := index[f.Name]; dup {
				wb.Dropped.Merged++
				if f.richness() > fields[i].richness() {
					fields[i] = f
				}
				return
			}
			index[f.Name] = len(fields)
			fields = append(fields, f)
		}

		for _, c := range xds.Columns {
			add(columnField(ds, c))
		}
		for _, r := range xds.Records {
			if r.Class != "column" || r.LocalName == "" {
				continue
			}
			if _, declared := index[Unbracket(r.LocalName)]; declared {
				continue
			}
			add(recordField(ds, r))
		}

		for _, f := range fields {
			switch {
			case f.Name == measureNames:
				wb.Dropped.MeasureNames++
			case !ds.IsParameters() && params[f.Name]:
				wb.Dropped.ParameterCopies++
				redirect[fieldKey{ds.Name, f.Name}] = true
			default:
				wb.Fields = append(wb.Fields, f)
			}
		}
	}

	usage := make(map[fieldKey][]string)
	for _, xws := range doc.Worksheets {
		sheet := Sheet{Name: xws.Name, Title: strings.Join(xws.Title, "")}
		seen := make(map[formula.Reference]bool)
		use := func(source, raw string) {
			name := Unbracket(raw)
			if name == "" || name == measureNames {
				return
			}
			if redirect[fieldKey{source, name}] {
				source = ParametersDatasource
			}
			ref := formula.Reference{Source: source, Name: name}
			if seen[ref] {
				return
			}
			seen[ref] = true
			sheet.Fields = append(sheet.Fields, ref)
			key := fieldKey{source, name}
			usage[key] = append(usage[key], xws.Name)
		}
		for _, dep := range xws.Dependencies {
			for _, c := range dep.Columns {
				use(dep.Datasource, c.Name)
			}
			for _, in := range dep.Instances {
				use(dep.Datasource, in.Column)
			}
		}
		wb.Sheets = append(wb.Sheets, sheet)
	}

	for i := range wb.Fields {
		f := &wb.Fields[i]
		if sheets := usage[fieldKey{f.Datasource.Name, f.Name}]; len(sheets) > 0 {
			f.Worksheets = slices.Compact(slices.Sorted(slices.Values(sheets)))
		}
	}
	return wb
}

func columnField(ds Datasource, c xmlColumn) Field {
	f := Field{
		Datasource:  ds,
		Name:        Unbracket(c.Name),
		Caption:     c.Caption,
		Datatype:    c.Datatype,
		Role:        c.Role,
		Type:        c.Type,
		Hidden:      c.Hidden == "true",
		Description: strings.TrimSpace(strings.Join(c.Desc, "")),
	}
	if c.Calculation != nil && c.Calculation.Class != "categorical-bin" {
		f.Calculation = c.Calculation.Formula
	}
	return f
}

// recordField builds a raw field from connection metadata for columns that
// are never declared explicitly.
func recordField(ds Datasource, r xmlRecord) Field {
	role := "dimension"
	switch strings.ToLower(r.Aggregation) {
	case "sum", "avg":
		role = "measure"
	}
	return Field{
		Datasource: ds,
		Name:       Unbracket(r.LocalName),
		Datatype:   r.LocalType,
		Role:       role,
	}
}
