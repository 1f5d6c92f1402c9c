package scorer

import (
	"strings"
	"testing"

	"contentforge/internal/domain"
)

// sampleArticle builds a structurally decent article body. withH1 adds a
// body-level H1, which the structure axis treats as a defect.
func sampleArticle(withH1 bool) string {
	var b strings.Builder
	if withH1 {
		b.WriteString("<h1>Solar Panels Guide</h1>")
	}
	b.WriteString(`<p>Solar panels cut household energy bills and most homes recover the cost within 8 years. In 2024 the average installation price fell 12 percent, and output per panel rose to 430 watts.</p>`)
	b.WriteString(`<h2>How solar panels work</h2>`)
	b.WriteString(`<p>Each cell converts light into current. Berlin and Madrid lead European adoption, with Germany adding 14 gigawatts in a single year.</p>`)
	b.WriteString(`<h2>Costs and savings</h2>`)
	b.WriteString(`<ul><li>Typical system: 6 kW</li><li>Payback: 7 to 9 years</li></ul>`)
	b.WriteString(`<p>See the <a href="/pricing">pricing page</a> and the <a href="/faq">support hub</a> for details.</p>`)
	b.WriteString(`<h2>FAQ</h2>`)
	b.WriteString(`<p>Short answers to common questions about permits and warranties.</p>`)
	b.WriteString(`<script type="application/ld+json">{"@type":"Article"}</script>`)
	b.WriteString(`<img src="/img/panels.jpg" alt="Roof installation">`)
	b.WriteString(`<p>Solar panels remain the fastest route to lower bills for most households.</p>`)
	return b.String()
}

func TestScore(t *testing.T) {
	s := New()

	t.Run("deterministic for identical input", func(t *testing.T) {
		html := sampleArticle(false)
		first := s.Score(html, "solar panels", []string{"energy bills"}, 80)
		second := s.Score(html, "solar panels", []string{"energy bills"}, 80)

		if first.Total != second.Total {
			t.Errorf("totals differ: %.2f vs %.2f", first.Total, second.Total)
		}
		for key, v := range first.Breakdown {
			if second.Breakdown[key] != v {
				t.Errorf("breakdown %q differs: %.2f vs %.2f", key, v, second.Breakdown[key])
			}
		}
		if len(first.Issues) != len(second.Issues) {
			t.Errorf("issue counts differ: %d vs %d", len(first.Issues), len(second.Issues))
		}
	})

	t.Run("breakdown respects axis caps and sums to total", func(t *testing.T) {
		score := s.Score(sampleArticle(false), "solar panels", nil, 80)

		caps := map[string]float64{
			domain.ScoreSEO:         maxSEO,
			domain.ScoreReadability: maxReadability,
			domain.ScoreStructure:   maxStructure,
			domain.ScoreNaturalness: maxNaturalness,
			domain.ScoreDepth:       maxDepth,
		}
		sum := 0.0
		for key, limit := range caps {
			v, ok := score.Breakdown[key]
			if !ok {
				t.Fatalf("breakdown missing %q", key)
			}
			if v < 0 || v > limit {
				t.Errorf("%s = %.2f outside [0, %.0f]", key, v, limit)
			}
			sum += v
		}
		if score.Total != sum {
			t.Errorf("total %.2f != breakdown sum %.2f", score.Total, sum)
		}
		if score.Total > 100 {
			t.Errorf("total %.2f exceeds 100", score.Total)
		}
	})

	t.Run("passed follows the supplied threshold", func(t *testing.T) {
		html := sampleArticle(false)
		if got := s.Score(html, "solar panels", nil, 0); !got.Passed {
			t.Error("threshold 0 not passed")
		}
		if got := s.Score(html, "solar panels", nil, 101); got.Passed {
			t.Error("threshold 101 passed")
		}
	})

	t.Run("empty input scores without failing", func(t *testing.T) {
		score := s.Score("", "", nil, 80)
		if score.Passed {
			t.Error("empty document passed")
		}
		if len(score.Issues) == 0 {
			t.Error("empty document produced no issues")
		}
	})
}

func TestScoreDegradedAnalyzer(t *testing.T) {
	html := sampleArticle(false)
	full := New().Score(html, "solar panels", nil, 80)
	degraded := NewWithAnalyzer(NewUnavailableAnalyzer()).Score(html, "solar panels", nil, 80)

	if degraded.Breakdown[domain.ScoreReadability] != 0 {
		t.Errorf("readability = %.2f without analyzer, want 0", degraded.Breakdown[domain.ScoreReadability])
	}
	if degraded.Total > full.Total {
		t.Errorf("degraded total %.2f exceeds full total %.2f", degraded.Total, full.Total)
	}

	found := false
	for _, issue := range degraded.Issues {
		if strings.Contains(issue, "no sentence analyzer") {
			found = true
			break
		}
	}
	if !found {
		t.Error("degraded run did not explain the missing analyzer")
	}

	// Depth, structure and SEO do not depend on the analyzer.
	for _, key := range []string{domain.ScoreSEO, domain.ScoreStructure, domain.ScoreDepth} {
		if degraded.Breakdown[key] != full.Breakdown[key] {
			t.Errorf("%s changed without analyzer: %.2f vs %.2f", key, degraded.Breakdown[key], full.Breakdown[key])
		}
	}
}

func TestStructureTopHeadingPenalty(t *testing.T) {
	s := New()
	clean := s.Score(sampleArticle(false), "solar panels", nil, 80)
	withH1 := s.Score(sampleArticle(true), "solar panels", nil, 80)

	diff := clean.Breakdown[domain.ScoreStructure] - withH1.Breakdown[domain.ScoreStructure]
	if diff != structNoTopHeadingPoints {
		t.Errorf("top heading penalty = %.2f, want %.2f", diff, structNoTopHeadingPoints)
	}
}

func TestSEOPlacement(t *testing.T) {
	s := New()

	t.Run("phrase placed in all three anchors", func(t *testing.T) {
		score := s.Score(sampleArticle(false), "solar panels", nil, 80)
		for _, issue := range score.Issues {
			if strings.Contains(issue, "primary phrase missing") {
				t.Errorf("unexpected placement issue: %s", issue)
			}
		}
	})

	t.Run("phrase absent from anchors", func(t *testing.T) {
		score := s.Score(sampleArticle(false), "wind turbines", nil, 80)
		missing := 0
		for _, issue := range score.Issues {
			if strings.Contains(issue, "primary phrase missing") {
				missing++
			}
		}
		if missing != 3 {
			t.Errorf("placement issues = %d, want 3", missing)
		}
	})

	t.Run("secondary coverage reported", func(t *testing.T) {
		score := s.Score(sampleArticle(false), "solar panels", []string{"energy bills", "quantum flux"}, 80)
		found := false
		for _, issue := range score.Issues {
			if strings.Contains(issue, "secondary phrase coverage 1/2") {
				found = true
			}
		}
		if !found {
			t.Error("partial secondary coverage not reported")
		}
	})
}

func TestPhraseDensity(t *testing.T) {
	// 50 filler words plus three more tokens, two of them the phrase.
	text := strings.Repeat("word ", 50) + "apple other apple"
	got := phraseDensity(Normalize(text), "apple")
	want := 2.0 / 53.0 * 100
	if diff := got - want; diff > 0.01 || diff < -0.01 {
		t.Errorf("density = %.3f, want %.3f", got, want)
	}

	if got := phraseDensity("", "apple"); got != 0 {
		t.Errorf("empty text density = %.2f", got)
	}
	if got := phraseDensity("some text", ""); got != 0 {
		t.Errorf("empty phrase density = %.2f", got)
	}
}
