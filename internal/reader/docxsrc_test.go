package reader

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractWordText(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "单段落",
			content: `<w:p><w:r><w:t>运维周报内容</w:t></w:r></w:p>`,
			want:    "运维周报内容",
		},
		{
			name: "多段落以换行分隔",
			content: `<w:p><w:r><w:t>第一段</w:t></w:r></w:p>` +
				`<w:p><w:r><w:t>第二段</w:t></w:r></w:p>`,
			want: "第一段\n第二段",
		},
		{
			name:    "同段多运行拼接",
			content: `<w:p><w:r><w:t>前半</w:t></w:r><w:r><w:t>后半</w:t></w:r></w:p>`,
			want:    "前半后半",
		},
		{
			name:    "带属性的文本节点",
			content: `<w:p><w:r><w:t xml:space="preserve"> 保留空格</w:t></w:r></w:p>`,
			want:    " 保留空格",
		},
		{
			name:    "实体还原",
			content: `<w:p><w:r><w:t>A&amp;B &lt;C&gt;</w:t></w:r></w:p>`,
			want:    "A&B <C>",
		},
		{
			name:    "无文本内容",
			content: `<w:p><w:pPr/></w:p>`,
			want:    "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractWordText(tt.content))
		})
	}
}
