package sanitize

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestText(t *testing.T) {
	cases := map[string]string{
		"  <b>Träning</b>\n  A-lag ":                "Träning A-lag",
		"Kalle & Hobbe":                             "Kalle & Hobbe",
		"<script>x</script>Plan 2":                  "Plan 2",
		"":                                          "",
		"Hej &lt;script&gt;alert(1)&lt;/script&gt;": "Hej",
		"&lt;b&gt;Plan&lt;/b&gt; 3":                 "Plan 3",
		"1 &lt; 2":                                  "1 &lt; 2",
		"&amp;lt;b&amp;gt;x":                        "&lt;b&gt;x",
	}
	for in, want := range cases {
		require.Equal(t, want, Text(in), "Text(%q)", in)
	}
}

func TestText_NeverEmitsTags(t *testing.T) {
	for _, in := range []string{
		"&lt;img src=x onerror=alert(1)&gt;",
		"&#60;script&#62;alert(1)&#60;/script&#62;",
		"&amp;lt;script&amp;gt;",
		"a <b >c",
		"<<script>script>",
	} {
		out := Text(in)
		require.NotContains(t, out, "<", "Text(%q) = %q", in, out)
		require.NotContains(t, out, ">", "Text(%q) = %q", in, out)
	}
}

func TestTextSlice(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, TextSlice([]string{" a ", "<i></i>", "b<br>"}))
}

func TestDescription(t *testing.T) {
	require.Equal(t, "Ta med &lt;boll&gt;&lt;br /&gt;\nSamling 17:00", Description("Ta med <boll>\r\nSamling 17:00"))
}

func TestFileName(t *testing.T) {
	cases := map[string]string{
		"https://cdn.example.com/img/Lag%20Bild.JPG?x=1": "lag-bild.jpg",
		"https://cdn.example.com/a/b/photo_1.png":        "photo_1.png",
		"https://cdn.example.com/":                       "",
		"relative/Å-bild.png":                            "bild.png",
	}
	for in, want := range cases {
		require.Equal(t, want, FileName(in), "FileName(%q)", in)
	}
}
