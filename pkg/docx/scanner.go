package docx

import "regexp"

// tokenPattern 占位符定界符模式，固定为 {{标识符}} 形式，不支持按请求配置
// 标识符为词字符（字母、数字、下划线，含中文等Unicode字母）
var tokenPattern = regexp.MustCompile(`\{\{([\p{L}\p{N}_]+)\}\}`)

// Token 模板中一处占位符
// 位置用索引记录（部件名 + 段落下标 + 运行区间），替换阶段按原始偏移拼接，
// 不持有活动指针
type Token struct {
	Key  string // 占位符标识符，如 dept
	Raw  string // 原始文本，如 {{dept}}
	Part string // 所在部件名
	Para int    // 段落下标
	// StartRun/EndRun 占位符覆盖的运行区间（闭区间）
	StartRun, EndRun int

	// start/end 在段落拼接文本中的字节区间
	start, end int
}

// Scan 按文档顺序扫描所有段落（含表格单元格），返回全部占位符
//
// 每个段落先把运行文本拼接成整体再做正则匹配，然后把匹配区间映射回
// 归属的运行。编辑器常把一个占位符拆进多个相邻运行，逐运行匹配会漏掉
// 这类被拆分的占位符。左右定界符不配对的片段直接忽略。
func (d *Document) Scan() []Token {
	var tokens []Token

	for _, part := range d.parts {
		for pi := range part.Paragraphs {
			para := &part.Paragraphs[pi]
			if para.Text == "" {
				continue
			}

			matches := tokenPattern.FindAllStringSubmatchIndex(para.Text, -1)
			for _, m := range matches {
				start, end := m[0], m[1]
				startRun, endRun := para.runRange(start, end)
				if startRun < 0 {
					continue
				}
				tokens = append(tokens, Token{
					Key:      para.Text[m[2]:m[3]],
					Raw:      para.Text[start:end],
					Part:     part.Name,
					Para:     pi,
					StartRun: startRun,
					EndRun:   endRun,
					start:    start,
					end:      end,
				})
			}
		}
	}

	return tokens
}

// runRange 把段落文本的字节区间映射为覆盖的运行区间
func (p *Paragraph) runRange(start, end int) (int, int) {
	startRun, endRun := -1, -1
	for _, ref := range p.nodes {
		if ref.charStart < end && ref.charEnd > start {
			if startRun < 0 {
				startRun = ref.run
			}
			endRun = ref.run
		}
	}
	return startRun, endRun
}
