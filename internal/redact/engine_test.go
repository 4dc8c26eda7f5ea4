package redact

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentify_BasicCategories(t *testing.T) {
	text := "联系人：张三丰，联系电话：13812345678，邮箱：zhang@example.com"

	matches, err := Identify(text, DefaultRules())
	require.NoError(t, err)

	byCategory := make(map[string]Match)
	for _, m := range matches {
		byCategory[m.Category] = m
	}

	require.Contains(t, byCategory, "person_name")
	assert.Equal(t, "张三丰", byCategory["person_name"].Original)
	assert.Equal(t, "【人员1】", byCategory["person_name"].Replacement)

	require.Contains(t, byCategory, "phone")
	assert.Equal(t, "13812345678", byCategory["phone"].Original)

	require.Contains(t, byCategory, "email")
	assert.Equal(t, "zhang@example.com", byCategory["email"].Original)
}

func TestIdentify_MatchesArePairwiseNonOverlapping(t *testing.T) {
	text := "住所：广州市天河区体育西路101号，身份证号440101199001011234，" +
		"合同编号：HT-2024-0012，2024年1月15日签订，人民币 1,000,000 元"

	matches, err := Identify(text, DefaultRules())
	require.NoError(t, err)
	require.NotEmpty(t, matches)

	for i := 0; i < len(matches); i++ {
		for j := i + 1; j < len(matches); j++ {
			a, b := matches[i], matches[j]
			overlap := a.StartIndex < b.EndIndex && b.StartIndex < a.EndIndex
			assert.False(t, overlap, "matches %s and %s overlap", a.ID, b.ID)
		}
	}
}

func TestIdentify_EarlierRuleWinsOverlap(t *testing.T) {
	// The id card number sits inside the span the address rule would
	// capture. id_card is declared first, so the address match that
	// overlaps it must be dropped.
	text := "住所：广州市天河区440101199001011234"

	matches, err := Identify(text, DefaultRules())
	require.NoError(t, err)

	var idCard, address int
	for _, m := range matches {
		switch m.Category {
		case "id_card":
			idCard++
			assert.Equal(t, "440101199001011234", m.Original)
		case "address":
			address++
		}
	}
	assert.Equal(t, 1, idCard)
	assert.Equal(t, 0, address)
}

func TestIdentify_RepeatedTextSharesTag(t *testing.T) {
	text := "甲方：张三丰。乙方：李四。联系人：张三丰"

	matches, err := Identify(text, DefaultRules())
	require.NoError(t, err)

	persons := make([]Match, 0)
	for _, m := range matches {
		if m.Category == "person_name" {
			persons = append(persons, m)
		}
	}
	require.Len(t, persons, 3)

	tags := make(map[string]string)
	for _, m := range persons {
		if existing, ok := tags[m.Original]; ok {
			assert.Equal(t, existing, m.Replacement)
		}
		tags[m.Original] = m.Replacement
	}
	assert.Equal(t, "【人员1】", tags["张三丰"])
	assert.Equal(t, "【人员2】", tags["李四"])

	ids := make(map[string]bool)
	for _, m := range persons {
		assert.False(t, ids[m.ID], "duplicate match id %s", m.ID)
		ids[m.ID] = true
	}
}

func TestIdentify_SortedByStartIndex(t *testing.T) {
	text := "邮箱：a@b.com，身份证号440101199001011234，联系电话：13812345678"

	matches, err := Identify(text, DefaultRules())
	require.NoError(t, err)
	require.True(t, len(matches) >= 2)

	for i := 1; i < len(matches); i++ {
		assert.LessOrEqual(t, matches[i-1].StartIndex, matches[i].StartIndex)
	}
}

func TestApply_SubstitutesBackToFront(t *testing.T) {
	text := "联系人：张三丰，联系电话：13812345678"

	matches, err := Identify(text, DefaultRules())
	require.NoError(t, err)

	redacted := Apply(text, matches)
	assert.Equal(t, "联系人：【人员1】，联系电话：【电话1】", redacted)
}

func TestApply_RedactedOutputHasNoRemainingMatches(t *testing.T) {
	text := "甲方：张三丰，身份证号440101199001011234，邮箱：zhang@example.com，" +
		"联系电话：13812345678，统一社会信用代码：91440101MA5ATJ2X8Q"

	matches, err := Identify(text, DefaultRules())
	require.NoError(t, err)
	require.NotEmpty(t, matches)

	redacted := Apply(text, matches)
	for _, m := range matches {
		assert.NotContains(t, redacted, m.Original)
	}

	again, err := Identify(redacted, DefaultRules())
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestApply_HonorsSelection(t *testing.T) {
	text := "联系人：张三丰，联系电话：13812345678"

	matches, err := Identify(text, DefaultRules())
	require.NoError(t, err)

	var phoneID string
	for _, m := range matches {
		if m.Category == "phone" {
			phoneID = m.ID
		}
	}
	require.NotEmpty(t, phoneID)

	deselected := Deselect(matches, phoneID)
	redacted := Apply(text, deselected)

	assert.Contains(t, redacted, "【人员1】")
	assert.Contains(t, redacted, "13812345678")

	// Deselect keeps the match listed; Remove drops it entirely.
	assert.Len(t, deselected, len(matches))
	removed := Remove(matches, phoneID)
	assert.Len(t, removed, len(matches)-1)
}

func TestApply_IgnoresStaleOffsets(t *testing.T) {
	out := Apply("short", []Match{{
		StartIndex:  2,
		EndIndex:    99,
		Replacement: "X",
		Selected:    true,
	}})
	assert.Equal(t, "short", out)
}

func TestDetectLanguage_Advisory(t *testing.T) {
	zh := DetectLanguage(strings.Repeat("本合同由甲方与乙方协商一致后签订。", 5))
	assert.Equal(t, "zh", zh.Code)

	und := DetectLanguage("   ")
	assert.Equal(t, "und", und.Code)
}
