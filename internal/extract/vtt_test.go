package extract

import "testing"

func TestCleanVTT(t *testing.T) {
	vtt := `WEBVTT
Kind: captions
Language: en

1
00:00:00.000 --> 00:00:02.000
<c>Hello</c> everyone

2
00:00:02.000 --> 00:00:04.000
Hello everyone

3
00:00:04.000 --> 00:00:06.000
welcome to the <b>show</b>

NOTE internal marker
`
	got := CleanVTT(vtt)
	want := "Hello everyone welcome to the show"
	if got != want {
		t.Errorf("CleanVTT = %q, want %q", got, want)
	}
}

func TestCleanVTTKeepsNonConsecutiveRepeats(t *testing.T) {
	vtt := `WEBVTT

00:00:00.000 --> 00:00:01.000
again

00:00:01.000 --> 00:00:02.000
and once more

00:00:02.000 --> 00:00:03.000
again
`
	got := CleanVTT(vtt)
	want := "again and once more again"
	if got != want {
		t.Errorf("CleanVTT = %q, want %q", got, want)
	}
}

func TestCleanVTTEmpty(t *testing.T) {
	if got := CleanVTT("WEBVTT\n\n"); got != "" {
		t.Errorf("CleanVTT = %q, want empty", got)
	}
}
