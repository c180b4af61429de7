package htmlutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestText(t *testing.T) {
	doc, err := Parse([]byte(`<div>
		<span class="a">  hello <b>world</b>  </span>
		<span class="b">multi
			line
			<!-- ignored -->text</span>
		<span class="a">second</span>
	</div>`))
	require.NoError(t, err)

	require.Equal(t, "hello world", Text(doc.Find(".a")))
	require.Equal(t, "multi line text", Text(doc.Find(".b")))
	require.Equal(t, "", Text(doc.Find(".missing")))
}
