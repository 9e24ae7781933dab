package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"HER2", "HER2"},
		{"her-2", "HER2"},
		{" Folate Receptor α ", "FOLATERECEPTOR"},
		{"B7-H3", "B7H3"},
		{"ＣＤ３３", "CD33"}, // full-width forms fold to ASCII
		{"", ""},
		{"--", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Key(tt.input))
		})
	}
}

func TestFold(t *testing.T) {
	assert.Equal(t, "open-label dose escalation", Fold("  Open-Label\tDose   ESCALATION "))
	assert.Equal(t, "", Fold("   "))
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Seagen Inc", Title("seagen inc"))
	assert.Equal(t, "Kelun Biotech", Title(" KELUN biotech"))
}

func TestExpandParenthetical(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"Long_And_Short", "Folate Receptor Alpha (FRA)", []string{"Folate Receptor Alpha", "FRA"}},
		{"No_Parenthetical", "TROP2", []string{"TROP2"}},
		{"Inner_Parenthetical_Only", "MMAE (vedotin) linker", []string{"MMAE (vedotin) linker"}},
		{"Empty_Inside", "DXd ()", []string{"DXd"}},
		{"Only_Parenthetical", "(SN-38)", []string{"SN-38"}},
		{"Last_Group_Wins", "A (B) (C)", []string{"A (B)", "C"}},
		{"Trailing_Space", "monomethyl auristatin E (MMAE)  ", []string{"monomethyl auristatin E", "MMAE"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExpandParenthetical(tt.input))
		})
	}
}

func TestExpandAcronyms(t *testing.T) {
	table := AcronymTable{
		{Short: "NSCLC", Long: "non-small cell lung cancer"},
		{Short: "SCLC", Long: "small cell lung cancer"},
		{Short: "EGFR-TKI", Long: "EGFR tyrosine kinase inhibitor"},
		{Short: "HER2", Long: "human epidermal growth factor receptor 2"},
	}

	t.Run("Single_Acronym", func(t *testing.T) {
		got := ExpandAcronyms("NSCLC", table)
		assert.Equal(t, []string{"NSCLC", "non-small cell lung cancer"}, got)
	})

	t.Run("Whole_Token_Only", func(t *testing.T) {
		// SCLC must not fire inside NSCLC
		got := ExpandAcronyms("NSCLC", table)
		assert.NotContains(t, got, "Nsmall cell lung cancer")
	})

	t.Run("Multiple_Substitutions", func(t *testing.T) {
		got := ExpandAcronyms("EGFR-TKI resistant NSCLC", table)
		assert.Contains(t, got, "EGFR-TKI resistant NSCLC")
		assert.Contains(t, got, "EGFR-TKI resistant non-small cell lung cancer")
		assert.Contains(t, got, "EGFR tyrosine kinase inhibitor resistant NSCLC")
		assert.Contains(t, got, "EGFR tyrosine kinase inhibitor resistant non-small cell lung cancer")
	})

	t.Run("Parentheses_Removed_Variant", func(t *testing.T) {
		got := ExpandAcronyms("lung cancer (NSCLC)", table)
		assert.Contains(t, got, "lung cancer (non-small cell lung cancer)")
		assert.Contains(t, got, "lung cancer non-small cell lung cancer")
	})

	t.Run("Case_Sensitive_Replacement", func(t *testing.T) {
		got := ExpandAcronyms("her2 positive", table)
		assert.Equal(t, []string{"her2 positive"}, got)
	})

	t.Run("Lowercase_Word_Not_Expanded", func(t *testing.T) {
		leukemia := AcronymTable{{Short: "ALL", Long: "acute lymphoblastic leukemia"}}
		assert.Equal(t, []string{"solid tumors in all patients"},
			ExpandAcronyms("solid tumors in all patients", leukemia))
		assert.Contains(t, ExpandAcronyms("relapsed ALL", leukemia), "relapsed acute lymphoblastic leukemia")
	})

	t.Run("No_Acronym", func(t *testing.T) {
		assert.Equal(t, []string{"breast cancer"}, ExpandAcronyms("breast cancer", table))
	})
}

func TestReplaceToken(t *testing.T) {
	out, ok := ReplaceToken("AML and AML", "AML", "acute myeloid leukemia")
	assert.True(t, ok)
	assert.Equal(t, "acute myeloid leukemia and acute myeloid leukemia", out)

	out, ok = ReplaceToken("small cell", "ALL", "x")
	assert.False(t, ok)
	assert.Equal(t, "small cell", out)

	out, ok = ReplaceToken("all and ALL", "ALL", "acute lymphoblastic leukemia")
	assert.True(t, ok)
	assert.Equal(t, "all and acute lymphoblastic leukemia", out)
}
