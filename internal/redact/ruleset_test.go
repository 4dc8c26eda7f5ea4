package redact

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestLoadRuleset_ValidRules(t *testing.T) {
	data := []byte(`[
		{
			"category": "ticket",
			"patterns": ["TICKET-(\\d+)"],
			"replacement": "【工单${index}】",
			"use_capture_group": true
		}
	]`)

	rules, err := LoadRuleset(data)
	require.NoError(t, err)
	require.Len(t, rules, 1)

	matches, err := Identify("见 TICKET-42 与 TICKET-43", rules)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "42", matches[0].Original)
	assert.Equal(t, "【工单1】", matches[0].Replacement)
	assert.Equal(t, "【工单2】", matches[1].Replacement)
}

func TestLoadRuleset_TranslatesJSUnicodeEscapes(t *testing.T) {
	data := []byte(`[
		{
			"category": "cjk",
			"patterns": ["[\\u4e00-\\u9fa5]{2,4}公司"],
			"replacement": "【公司${index}】"
		}
	]`)

	rules, err := LoadRuleset(data)
	require.NoError(t, err)

	matches, err := Identify("与恒大公司签约", rules)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "恒大公司", matches[0].Original)
}

func TestLoadRuleset_RejectsInvalidDocuments(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not json", data: `{{`},
		{name: "empty array", data: `[]`},
		{name: "missing replacement", data: `[{"category":"x","patterns":["a"]}]`},
		{name: "empty patterns", data: `[{"category":"x","patterns":[],"replacement":"y"}]`},
		{name: "unknown field", data: `[{"category":"x","patterns":["a"],"replacement":"y","priority":1}]`},
		{name: "broken regex", data: `[{"category":"x","patterns":["("],"replacement":"y"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRuleset([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestDefaultRulesCompile(t *testing.T) {
	_, err := compileRules(DefaultRules())
	require.NoError(t, err)
}

func TestReportMarkdown_SelectedRowsOnly(t *testing.T) {
	matches := []Match{
		{Category: "person_name", Original: "张三丰", Replacement: "【人员1】", Selected: true},
		{Category: "phone", Original: "13812345678", Replacement: "【电话1】", Selected: false},
		{Category: "custom_thing", Original: "secret", Replacement: "【X1】", Selected: true},
	}

	report := ReportMarkdown(matches)

	assert.Contains(t, report, "# 脱敏替换比对表")
	assert.Contains(t, report, "| 人名 | 张三丰 | 【人员1】 |")
	assert.Contains(t, report, "| custom_thing | secret | 【X1】 |")
	assert.NotContains(t, report, "13812345678")
}

func TestReportXLSX_RoundTrip(t *testing.T) {
	matches := []Match{
		{Category: "person_name", Original: "张三丰", Replacement: "【人员1】", Selected: true},
		{Category: "phone", Original: "13812345678", Replacement: "【电话1】", Selected: false},
	}

	data, err := ReportXLSX(matches)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"类型", "原文内容", "脱敏标记"}, rows[0])
	assert.Equal(t, []string{"人名", "张三丰", "【人员1】"}, rows[1])
}
