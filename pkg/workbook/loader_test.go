package workbook

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/matzehuels/workbookdeps/pkg/errors"
	"github.com/matzehuels/workbookdeps/pkg/formula"
)

const superstoreTWB = `<?xml version='1.0' encoding='utf-8' ?>
<workbook source-build='2023.1.0' version='18.1'>
  <datasources>
    <datasource hasconnection='false' inline='true' name='Parameters' version='18.1'>
      <aliases enabled='yes' />
      <column caption='Target' datatype='real' name='[Parameter 1]' param-domain-type='any' role='measure' type='quantitative' value='0.15'>
        <calculation class='tableau' formula='0.15' />
      </column>
    </datasource>
    <datasource caption='Superstore' inline='true' name='federated.0abc' version='18.1'>
      <connection class='federated'>
        <metadata-records>
          <metadata-record class='column'>
            <local-name>[Sales]</local-name>
            <local-type>real</local-type>
            <aggregation>Sum</aggregation>
          </metadata-record>
          <metadata-record class='column'>
            <local-name>[Region]</local-name>
            <local-type>string</local-type>
            <aggregation>Count</aggregation>
          </metadata-record>
          <metadata-record class='capability'>
            <local-name>ignored</local-name>
          </metadata-record>
        </metadata-records>
      </connection>
      <column caption='Target' datatype='real' name='[Parameter 1]' role='measure' type='quantitative'>
        <calculation class='tableau' formula='0.15' />
      </column>
      <column datatype='string' name='[:Measure Names]' role='dimension' type='nominal' />
      <column datatype='real' name='[Profit]' role='measure' type='quantitative' />
      <column datatype='real' name='[Profit]' role='measure' type='quantitative' caption='Profit'>
        <desc><formatted-text><run>Net profit</run></formatted-text></desc>
      </column>
      <column caption='Profit Ratio' datatype='real' name='[Calculation_1]' role='measure' type='quantitative'>
        <calculation class='tableau' formula='SUM([Profit])/SUM([Sales])' />
      </column>
      <column caption='Above Target' datatype='boolean' hidden='true' name='[Calculation_2]' role='dimension' type='nominal'>
        <calculation class='tableau' formula='[Calculation_1] &gt; [Parameters].[Parameter 1]' />
      </column>
    </datasource>
  </datasources>
  <worksheets>
    <worksheet name='Overview'>
      <layout-options>
        <title>
          <formatted-text>
            <run>Ratio by </run>
            <run>&lt;[federated.0abc].[none:Region:nk]&gt;</run>
          </formatted-text>
        </title>
      </layout-options>
      <table>
        <view>
          <datasource-dependencies datasource='federated.0abc'>
            <column datatype='real' name='[Calculation_1]' role='measure' type='quantitative' />
            <column datatype='real' name='[Parameter 1]' role='measure' type='quantitative' />
            <column-instance column='[Region]' derivation='None' name='[none:Region:nk]' pivot='key' type='nominal' />
            <column-instance column='[:Measure Names]' derivation='None' name='[:Measure Names]' pivot='key' type='nominal' />
          </datasource-dependencies>
        </view>
      </table>
    </worksheet>
    <worksheet name='Detail'>
      <table>
        <view>
          <datasource-dependencies datasource='federated.0abc'>
            <column-instance column='[Calculation_1]' derivation='User' name='[usr:Calculation_1:qk]' pivot='key' type='quantitative' />
          </datasource-dependencies>
        </view>
      </table>
    </worksheet>
  </worksheets>
</workbook>
`

func TestRead(t *testing.T) {
	wb, err := Read(strings.NewReader(superstoreTWB), "Superstore.twb")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if wb.Name != "Superstore" {
		t.Errorf("Name = %q, want Superstore", wb.Name)
	}

	var ids []string
	for _, f := range wb.Fields {
		ids = append(ids, f.ID())
	}
	wantIDs := []string{
		"[Parameters].[Parameter 1]",
		"[federated.0abc].[Profit]",
		"[federated.0abc].[Calculation_1]",
		"[federated.0abc].[Calculation_2]",
		"[federated.0abc].[Sales]",
		"[federated.0abc].[Region]",
	}
	if !reflect.DeepEqual(ids, wantIDs) {
		t.Errorf("field ids = %v, want %v", ids, wantIDs)
	}

	want := Dropped{ParameterCopies: 1, MeasureNames: 1, Merged: 1}
	if wb.Dropped != want {
		t.Errorf("Dropped = %+v, want %+v", wb.Dropped, want)
	}

	profit := wb.Fields[1]
	if profit.Caption != "Profit" || profit.Description != "Net profit" {
		t.Errorf("merged Profit = %+v, want richer declaration", profit)
	}

	above := wb.Fields[3]
	if !above.Hidden || above.Calculation != "[Calculation_1] > [Parameters].[Parameter 1]" {
		t.Errorf("Calculation_2 = %+v", above)
	}

	if got := wb.Fields[4].Category(); got != CategoryMeasure {
		t.Errorf("Sales category = %v, want measure", got)
	}
	if got := wb.Fields[5].Category(); got != CategoryDimension {
		t.Errorf("Region category = %v, want dimension", got)
	}
}

func TestReadSheets(t *testing.T) {
	wb, err := Read(strings.NewReader(superstoreTWB), "Superstore.twb")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(wb.Sheets) != 2 {
		t.Fatalf("Sheets = %d, want 2", len(wb.Sheets))
	}

	overview := wb.Sheets[0]
	wantRefs := []formula.Reference{
		{Source: "federated.0abc", Name: "Calculation_1"},
		{Source: "Parameters", Name: "Parameter 1"},
		{Source: "federated.0abc", Name: "Region"},
	}
	if !reflect.DeepEqual(overview.Fields, wantRefs) {
		t.Errorf("Overview fields = %v, want %v", overview.Fields, wantRefs)
	}
	if overview.Title != "Ratio by <[federated.0abc].[none:Region:nk]>" {
		t.Errorf("Overview title = %q", overview.Title)
	}

	ratio := wb.Fields[2]
	if !reflect.DeepEqual(ratio.Worksheets, []string{"Detail", "Overview"}) {
		t.Errorf("Calculation_1 worksheets = %v", ratio.Worksheets)
	}
	param := wb.Fields[0]
	if !reflect.DeepEqual(param.Worksheets, []string{"Overview"}) {
		t.Errorf("Parameter 1 worksheets = %v", param.Worksheets)
	}
}

func TestReadPackaged(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range map[string]string{
		"Data/extract.hyper": "binary",
		"Superstore.twb":     superstoreTWB,
	} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	wb, err := Read(&buf, "Superstore.twbx")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(wb.Fields) != 6 {
		t.Errorf("Fields = %d, want 6", len(wb.Fields))
	}
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		file  string
	}{
		{"not xml", "hello", "a.twb"},
		{"wrong root", "<document/>", "a.twb"},
		{"bad archive", "PK\x03\x04garbage", "a.twbx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.input), tt.file)
			if !errors.Is(err, errors.ErrCodeInvalidWorkbook) {
				t.Errorf("Read() error = %v, want %s", err, errors.ErrCodeInvalidWorkbook)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Superstore.twb")
	if err := os.WriteFile(path, []byte(superstoreTWB), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, err := Load(filepath.Join(dir, "missing.twb")); !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("Load(missing) error = %v, want %s", err, errors.ErrCodeFileNotFound)
	}
	if _, err := Load(filepath.Join(dir, "data.csv")); !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("Load(csv) error = %v, want %s", err, errors.ErrCodeInvalidFormat)
	}
}
