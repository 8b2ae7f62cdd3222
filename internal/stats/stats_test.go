package stats

import (
	"strings"
	"testing"

	"github.com/rentagg/feedbot/internal/models"
	"github.com/rentagg/feedbot/internal/records"
)

func row(q1, q2, q3, q4, q5 string) map[string]string {
	return map[string]string{
		records.ColQ1: q1,
		records.ColQ2: q2,
		records.ColQ3: q3,
		records.ColQ4: q4,
		records.ColQ5: q5,
	}
}

func TestComputeAggregates(t *testing.T) {
	rows := []map[string]string{
		row("15–30 минут", "8", "медленная модерация заявок", "импорт прайсов", "9"),
		row("15–30 минут", "6", "модерация долгая", "импорт", "10"),
		row("<15 минут", "abc", "", "", "99"), // non-numeric and out-of-range excluded from means
	}
	r := Compute(rows)

	if r.Total != 3 {
		t.Errorf("total: got %d", r.Total)
	}
	if r.Q1Distribution["15–30 минут"] != 2 || r.Q1Distribution["<15 минут"] != 1 {
		t.Errorf("q1 distribution: %v", r.Q1Distribution)
	}
	if r.Q2Count != 2 || r.Q2Mean != 7.0 {
		t.Errorf("q2 mean: got %.2f over %d values", r.Q2Mean, r.Q2Count)
	}
	if r.Q5Count != 2 || r.Q5Mean != 9.5 {
		t.Errorf("q5 mean: got %.2f over %d values", r.Q5Mean, r.Q5Count)
	}

	counts := make(map[string]int)
	for _, wc := range r.TopWords {
		counts[wc.Word] = wc.Count
	}
	if counts["импорт"] != 2 {
		t.Errorf("token counting failed: %v", r.TopWords)
	}
}

func TestComputeFiltersShortAndStopwords(t *testing.T) {
	rows := []map[string]string{
		row("", "", "это не очень и как бы то", "ок", ""),
	}
	r := Compute(rows)
	if len(r.TopWords) != 0 {
		t.Errorf("expected stopwords and short tokens filtered, got %v", r.TopWords)
	}
}

func TestRenderEmptyTable(t *testing.T) {
	out := Render(Compute(nil), models.LocaleRU)
	if out != "Пока нет данных." {
		t.Errorf("empty table should render the no-data message, got %q", out)
	}
}

func TestRenderContainsSections(t *testing.T) {
	rows := []map[string]string{row("<15 минут", "7", "модерация", "импорт прайсов", "9")}
	out := Render(Compute(rows), models.LocaleRU)
	for _, want := range []string{"Статистика", "Всего ответов: 1", "<15 минут — 1", "7.0", "9.0", "импорт — 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}
