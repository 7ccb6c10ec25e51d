package detector

import (
	"slices"
	"sync"
	"testing"
)

func words(ms []Match) []string {
	var out []string
	for _, m := range ms {
		out = append(out, m.Word)
	}
	return out
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"Hello, World!", []string{"hello", "world"}},
		{"  darn-it...DARN ", []string{"darn", "it", "darn"}},
		{"room 101", []string{"room", "101"}},
		{"Scheiße!", []string{"scheiße"}},
		{"!!!", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Tokenize(tt.in)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Tokenize(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if tt.want == nil && got != nil {
				t.Errorf("Tokenize(%q) = %#v, want nil", tt.in, got)
			}
		})
	}
}

func TestAnalyzeExact(t *testing.T) {
	m := New()
	m.Configure([]string{"Darn", "heck"})

	got := m.Analyze("Well, DARN it... what the heck?", 0.8)
	want := []Match{{Word: "darn", Confidence: 0.8}, {Word: "heck", Confidence: 0.8}}
	if !slices.Equal(got, want) {
		t.Errorf("Analyze = %+v, want %+v", got, want)
	}
}

func TestAnalyzeDuplicatesEmitEach(t *testing.T) {
	m := New()
	m.Configure([]string{"darn"})

	if got := words(m.Analyze("darn darn DARN", 1)); !slices.Equal(got, []string{"darn", "darn", "darn"}) {
		t.Errorf("got %v", got)
	}
}

func TestAnalyzeEmpty(t *testing.T) {
	m := New()
	if got := m.Analyze("darn", 1); len(got) != 0 {
		t.Errorf("empty vocabulary matched %v", got)
	}

	m.Configure([]string{"darn"})
	for _, text := range []string{"", "   ...", "darned"} {
		if got := m.Analyze(text, 1); len(got) != 0 {
			t.Errorf("Analyze(%q) = %v, want no matches", text, got)
		}
	}
}

func TestConfigureNormalizes(t *testing.T) {
	m := New()
	m.Configure([]string{"  Darn ", "DARN", "", "!!", "Oh, my GOD"})

	if got := m.Words(); !slices.Equal(got, []string{"darn", "oh my god"}) {
		t.Errorf("Words() = %q", got)
	}
}

func TestConfigureReplaces(t *testing.T) {
	m := New()
	m.Configure([]string{"darn"})
	m.Configure([]string{"heck"})

	if got := m.Analyze("darn", 1); len(got) != 0 {
		t.Errorf("old word still matches: %v", got)
	}
	if got := m.Analyze("heck", 1); len(got) != 1 {
		t.Errorf("new word: %v", got)
	}
}

func TestAnalyzeMultiWordEntries(t *testing.T) {
	m := New()
	m.Configure([]string{"oh my god", "god"})

	if got := words(m.Analyze("Oh my God, oh my", 0.5)); !slices.Equal(got, []string{"oh my god", "god"}) {
		t.Errorf("got %v", got)
	}
}

func TestPhoneticDisabledByDefault(t *testing.T) {
	m := New()
	m.Configure([]string{"dammit"})
	if got := m.Analyze("damnit", 1); len(got) != 0 {
		t.Errorf("got %v", got)
	}
}

func TestPhoneticMatch(t *testing.T) {
	m := New(WithPhonetic(DefaultPhoneticThreshold, DefaultFuzzyThreshold))
	m.Configure([]string{"dammit", "heck"})

	got := m.Analyze("damit that was close", 1)
	if len(got) != 1 {
		t.Fatalf("got %v, want one match", got)
	}
	if got[0].Word != "dammit" || !got[0].Fuzzy {
		t.Errorf("match = %+v", got[0])
	}
	if c := got[0].Confidence; c <= 0 || c > 1 {
		t.Errorf("confidence %v out of (0, 1]", c)
	}
}

func TestPhoneticIgnoresShortAndUnrelated(t *testing.T) {
	m := New(WithPhonetic(DefaultPhoneticThreshold, DefaultFuzzyThreshold))
	m.Configure([]string{"heck"})

	for _, text := range []string{"he", "banana split"} {
		if got := m.Analyze(text, 1); len(got) != 0 {
			t.Errorf("Analyze(%q) = %v", text, got)
		}
	}
}

func TestExactWinsOverPhonetic(t *testing.T) {
	m := New(WithPhonetic(DefaultPhoneticThreshold, DefaultFuzzyThreshold))
	m.Configure([]string{"heck"})

	got := m.Analyze("heck", 0.9)
	if len(got) != 1 {
		t.Fatalf("got %v", got)
	}
	if got[0].Fuzzy || got[0].Confidence != 0.9 {
		t.Errorf("match = %+v, want exact with confidence 0.9", got[0])
	}
}

func TestConcurrentAnalyzeConfigure(t *testing.T) {
	m := New()
	m.Configure([]string{"darn"})

	var wg sync.WaitGroup
	for i := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 200 {
				if i == 0 {
					m.Configure([]string{"darn", "heck"})
					continue
				}
				for _, match := range m.Analyze("darn it", 1) {
					if match.Word != "darn" {
						t.Errorf("unexpected match %q", match.Word)
					}
				}
			}
		}()
	}
	wg.Wait()
}
