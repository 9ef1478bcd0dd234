package docx

import "strings"

// SubstituteResult 替换结果统计
type SubstituteResult struct {
	Matched      []string // 成功替换的变量名，按文档顺序去重
	Unmatched    []string // 映射中缺失的变量名，按文档顺序去重
	Replacements int      // 实际替换的占位符个数
}

// Substitute 用变量映射替换扫描到的占位符，原地修改文档树
//
// 替换文本全部写入占位符覆盖区间的第一个运行，继承该运行的格式；
// 被完全清空的后续运行整体删除，不留空运行。映射中缺失的占位符
// 原样保留并记入 Unmatched。每个部件内的编辑按偏移从右向左应用，
// 先扫描出的索引在替换过程中始终有效。替换后的文档对象不应复用，
// 二次合并需要重新加载模板。
func (d *Document) Substitute(tokens []Token, values map[string]string) SubstituteResult {
	result := SubstituteResult{}
	matchedSeen := make(map[string]bool)
	unmatchedSeen := make(map[string]bool)

	partSplices := make(map[string][]splice)
	partByName := make(map[string]*Part, len(d.parts))
	for _, part := range d.parts {
		partByName[part.Name] = part
	}
	// 已补写 xml:space 的文本节点，按部件内标签偏移去重
	spaceTagged := make(map[string]map[int]bool)

	for _, tok := range tokens {
		value, ok := values[tok.Key]
		if !ok {
			if !unmatchedSeen[tok.Key] {
				unmatchedSeen[tok.Key] = true
				result.Unmatched = append(result.Unmatched, tok.Key)
			}
			continue
		}

		part := partByName[tok.Part]
		if part == nil || tok.Para >= len(part.Paragraphs) {
			continue
		}
		para := &part.Paragraphs[tok.Para]

		if spaceTagged[tok.Part] == nil {
			spaceTagged[tok.Part] = make(map[int]bool)
		}
		partSplices[tok.Part] = append(partSplices[tok.Part], tokenSplices(para, tok, value, spaceTagged[tok.Part])...)
		result.Replacements++
		if !matchedSeen[tok.Key] {
			matchedSeen[tok.Key] = true
			result.Matched = append(result.Matched, tok.Key)
		}
	}

	for name, splices := range partSplices {
		partByName[name].applySplices(splices)
	}

	return result
}

// tokenSplices 计算替换单个占位符所需的字节编辑
//
// 第一个被覆盖的文本节点写入替换值（前后未被覆盖的原文保持原始字节），
// 其余被覆盖的节点删除被覆盖区间；被占位符完全覆盖且不承载替换值的
// 运行整体删除
func tokenSplices(para *Paragraph, tok Token, value string, spaceTagged map[int]bool) []splice {
	var splices []splice

	insertionDone := false
	insertionRun := -1
	skipRun := -1

	for _, ref := range para.nodes {
		if ref.charStart >= tok.end || ref.charEnd <= tok.start {
			continue
		}
		if ref.run == skipRun {
			continue
		}

		run := &para.Runs[ref.run]
		node := &run.Texts[ref.text]

		// 不承载替换值的运行若被完全覆盖，删除整个 <w:r>
		// 承载替换值的运行除外：其余被覆盖的节点走节点级删除，
		// 整体删除会与已写入的替换值编辑区间重叠
		if insertionDone && ref.run != insertionRun && run.CharStart >= tok.start && run.CharEnd <= tok.end {
			splices = append(splices, splice{start: run.Start, end: run.End})
			skipRun = ref.run
			continue
		}

		p := tok.start
		if ref.charStart > p {
			p = ref.charStart
		}
		q := tok.end
		if ref.charEnd < q {
			q = ref.charEnd
		}

		srcStart := node.src[p-ref.charStart]
		var srcEnd int
		if q == ref.charEnd {
			srcEnd = node.InnerEnd
		} else {
			srcEnd = node.src[q-ref.charStart]
		}

		if !insertionDone {
			splices = append(splices, splice{start: srcStart, end: srcEnd, repl: escapeXML(value)})
			if sp, ok := spaceSplice(node, ref, tok, value, p); ok {
				if !spaceTagged[node.TagStart] {
					spaceTagged[node.TagStart] = true
					splices = append(splices, sp)
				}
			}
			insertionDone = true
			insertionRun = ref.run
			continue
		}

		// 后续节点：完全覆盖时连同 <w:t> 标签一起删除，避免残留空节点
		if p == ref.charStart && q == ref.charEnd {
			splices = append(splices, splice{start: node.TagStart, end: node.End})
		} else {
			splices = append(splices, splice{start: srcStart, end: srcEnd})
		}
	}

	return splices
}

// spaceSplice 在替换后的节点文本带有首尾空白而标签缺少
// xml:space="preserve" 时，单独改写开始标签，防止 Word 丢弃空白
func spaceSplice(node *TextNode, ref nodeRef, tok Token, value string, p int) (splice, bool) {
	if node.HasSpace {
		return splice{}, false
	}

	prefix := node.Text[:p-ref.charStart]
	suffix := ""
	if tok.end <= ref.charEnd {
		suffix = node.Text[tok.end-ref.charStart:]
	}
	finalText := prefix + value + suffix

	if finalText == strings.TrimSpace(finalText) {
		return splice{}, false
	}
	// 在开始标签的 '>' 之前插入属性，保留原有属性
	return splice{
		start: node.InnerStart - 1,
		end:   node.InnerStart - 1,
		repl:  ` xml:space="preserve"`,
	}, true
}
