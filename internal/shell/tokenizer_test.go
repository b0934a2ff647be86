package shell

import (
	"reflect"
	"testing"
)

func TestTokenizeBasic(t *testing.T) {
	cases := []struct {
		line string
		want []string
	}{
		{"ls", []string{"ls"}},
		{"ls -l /bucket", []string{"ls", "-l", "/bucket"}},
		{`ls "my dir"`, []string{"ls", "my dir"}},
		{`ls 'my dir'`, []string{"ls", "my dir"}},
		{`cat "quoted \"inner\""`, []string{"cat", `quoted "inner"`}},
		{`cat back\ slash`, []string{"cat", "back slash"}},
		{"  ls   -l  ", []string{"ls", "-l"}},
		{"", nil},
		{"   ", nil},
	}
	for _, c := range cases {
		got, err := Tokenize(c.line)
		if err != nil {
			t.Fatalf("Tokenize(%q): %v", c.line, err)
		}
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("Tokenize(%q) = %#v, want %#v", c.line, got, c.want)
		}
	}
}

func TestTokenizeErrors(t *testing.T) {
	cases := []string{
		`cat "unterminated`,
		`cat 'unterminated`,
		`cat trailing\`,
	}
	for _, line := range cases {
		if _, err := Tokenize(line); err == nil {
			t.Errorf("Tokenize(%q): want error, got nil", line)
		}
	}
}

func TestSplitPipeline(t *testing.T) {
	cases := []struct {
		line string
		want []string
	}{
		{"ls", []string{"ls"}},
		{"cat file.txt | grep foo", []string{"cat file.txt ", " grep foo"}},
		{`cat "a | b" | wc -l`, []string{`cat "a | b" `, " wc -l"}},
		{"ls | head | tail", []string{"ls ", " head ", " tail"}},
	}
	for _, c := range cases {
		got := SplitPipeline(c.line)
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("SplitPipeline(%q) = %#v, want %#v", c.line, got, c.want)
		}
	}
}
