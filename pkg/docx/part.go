package docx

import (
	"sort"
	"strconv"
	"strings"
)

// Part 文档中一个可合并的 XML 部件（正文、页眉或页脚）
// 保留原始 XML 字节串，段落/运行/文本节点只记录偏移索引，
// 替换通过字节拼接完成，未触及的内容保持逐字节不变
type Part struct {
	Name       string
	XML        string
	Paragraphs []Paragraph

	entryIndex int
	modified   bool
}

// Paragraph 一个 <w:p> 段落（包括表格单元格内的段落）
type Paragraph struct {
	Start, End int
	Runs       []Run
	// Text 段落内所有文本节点解码后的拼接结果
	Text string
	// nodes 按文档顺序记录每个文本节点在 Text 中的字节区间
	nodes []nodeRef
}

// Run 一个 <w:r> 运行，格式描述保留原始 <w:rPr> 片段
type Run struct {
	Start, End int
	Props      string
	Texts      []TextNode
	// CharStart/CharEnd 该运行文本在段落 Text 中的字节区间
	CharStart, CharEnd int
}

// TextNode 一个 <w:t> 文本节点
type TextNode struct {
	TagStart   int // 开始标签 '<' 的偏移
	InnerStart int // 文本内容起始偏移
	InnerEnd   int // "</w:t>" 的偏移
	End        int // 闭合标签之后的偏移
	HasSpace   bool
	Text       string
	// src 解码文本每个字节对应的源偏移，长度 len(Text)+1，末位为 InnerEnd
	src []int
}

// nodeRef 文本节点在段落坐标系中的定位
type nodeRef struct {
	run, text          int
	charStart, charEnd int
}

// parsePart 把部件 XML 解析为段落/运行/文本节点索引树
func parsePart(name, xmlStr string) *Part {
	p := &Part{Name: name, XML: xmlStr}

	pos := 0
	for {
		tagStart, tagEnd, selfClose, ok := findOpenTag(xmlStr, "w:p", pos, len(xmlStr))
		if !ok {
			break
		}
		if selfClose {
			pos = tagEnd
			continue
		}
		closeStart := findMatchingClose(xmlStr, "w:p", tagEnd, len(xmlStr))
		if closeStart < 0 {
			break
		}
		end := closeStart + len("</w:p>")
		para := parseParagraph(xmlStr, tagStart, tagEnd, closeStart)
		para.Start = tagStart
		para.End = end
		p.Paragraphs = append(p.Paragraphs, para)
		pos = end
	}

	return p
}

// parseParagraph 解析段落内的运行和文本节点，并构建段落级拼接文本
func parseParagraph(xmlStr string, start, innerStart, innerEnd int) Paragraph {
	para := Paragraph{}

	pos := innerStart
	for pos < innerEnd {
		tagStart, tagEnd, selfClose, ok := findOpenTag(xmlStr, "w:r", pos, innerEnd)
		if !ok {
			break
		}
		if selfClose {
			pos = tagEnd
			continue
		}
		closeStart := findMatchingClose(xmlStr, "w:r", tagEnd, innerEnd)
		if closeStart < 0 {
			break
		}
		runEnd := closeStart + len("</w:r>")
		run := parseRun(xmlStr, tagStart, tagEnd, closeStart)
		para.Runs = append(para.Runs, run)
		pos = runEnd
	}

	// 拼接段落文本并记录每个文本节点的字符区间
	var sb strings.Builder
	for ri := range para.Runs {
		run := &para.Runs[ri]
		run.CharStart = sb.Len()
		for ti := range run.Texts {
			node := &run.Texts[ti]
			ref := nodeRef{run: ri, text: ti, charStart: sb.Len()}
			sb.WriteString(node.Text)
			ref.charEnd = sb.Len()
			para.nodes = append(para.nodes, ref)
		}
		run.CharEnd = sb.Len()
	}
	para.Text = sb.String()

	return para
}

// parseRun 解析单个运行的格式片段和文本节点
func parseRun(xmlStr string, start, innerStart, innerEnd int) Run {
	run := Run{Start: start, End: innerEnd + len("</w:r>")}

	// 可选的 <w:rPr> 格式描述，保留原始片段
	if propStart, propTagEnd, selfClose, ok := findOpenTag(xmlStr, "w:rPr", innerStart, innerEnd); ok {
		if selfClose {
			run.Props = xmlStr[propStart:propTagEnd]
		} else if closeStart := findMatchingClose(xmlStr, "w:rPr", propTagEnd, innerEnd); closeStart >= 0 {
			run.Props = xmlStr[propStart : closeStart+len("</w:rPr>")]
		}
	}

	pos := innerStart
	for pos < innerEnd {
		tagStart, tagEnd, selfClose, ok := findOpenTag(xmlStr, "w:t", pos, innerEnd)
		if !ok {
			break
		}
		if selfClose {
			pos = tagEnd
			continue
		}
		closeStart := strings.Index(xmlStr[tagEnd:innerEnd], "</w:t>")
		if closeStart < 0 {
			break
		}
		closeStart += tagEnd

		node := TextNode{
			TagStart:   tagStart,
			InnerStart: tagEnd,
			InnerEnd:   closeStart,
			End:        closeStart + len("</w:t>"),
			HasSpace:   strings.Contains(xmlStr[tagStart:tagEnd], "xml:space"),
		}
		node.Text, node.src = decodeEntities(xmlStr[tagEnd:closeStart], tagEnd)
		run.Texts = append(run.Texts, node)
		pos = node.End
	}

	return run
}

// findOpenTag 在 [from, limit) 内查找 <name> 开始标签
// 返回标签起止偏移；delimiter 检查保证 w:r 不会误匹配 w:rPr、w:t 不会误匹配 w:tab
func findOpenTag(xmlStr, name string, from, limit int) (tagStart, tagEnd int, selfClose, ok bool) {
	needle := "<" + name
	pos := from
	for pos < limit {
		idx := strings.Index(xmlStr[pos:limit], needle)
		if idx < 0 {
			return 0, 0, false, false
		}
		idx += pos
		after := idx + len(needle)
		if after >= limit {
			return 0, 0, false, false
		}
		c := xmlStr[after]
		if c != '>' && c != ' ' && c != '/' && c != '\t' && c != '\n' && c != '\r' {
			pos = after
			continue
		}
		gt := strings.IndexByte(xmlStr[after:limit], '>')
		if gt < 0 {
			return 0, 0, false, false
		}
		gt += after
		selfClose = xmlStr[gt-1] == '/'
		return idx, gt + 1, selfClose, true
	}
	return 0, 0, false, false
}

// findMatchingClose 查找与当前元素匹配的闭合标签起点，支持同名嵌套
// （文本框等绘图元素内可能嵌套 w:p/w:r）
func findMatchingClose(xmlStr, name string, from, limit int) int {
	depth := 0
	closeNeedle := "</" + name + ">"
	pos := from
	for pos < limit {
		closeIdx := strings.Index(xmlStr[pos:limit], closeNeedle)
		if closeIdx < 0 {
			return -1
		}
		closeIdx += pos

		// 统计闭合标签之前新开启的同名元素
		for {
			_, tagEnd, selfClose, ok := findOpenTag(xmlStr, name, pos, closeIdx)
			if !ok {
				break
			}
			if !selfClose {
				depth++
			}
			pos = tagEnd
		}

		if depth == 0 {
			return closeIdx
		}
		depth--
		pos = closeIdx + len(closeNeedle)
	}
	return -1
}

// decodeEntities 解码 XML 实体，同时记录每个解码字节的源偏移
// base 为片段在部件 XML 中的绝对偏移
func decodeEntities(s string, base int) (string, []int) {
	var sb strings.Builder
	src := make([]int, 0, len(s)+1)

	i := 0
	for i < len(s) {
		if s[i] == '&' {
			semi := strings.IndexByte(s[i:], ';')
			if semi > 0 && semi <= 10 {
				entity := s[i+1 : i+semi]
				if r, ok := decodeEntity(entity); ok {
					entityEnd := base + i + semi + 1
					before := sb.Len()
					sb.WriteRune(r)
					// 实体首字节指向实体起点，其余字节指向实体终点
					src = append(src, base+i)
					for k := before + 1; k < sb.Len(); k++ {
						src = append(src, entityEnd)
					}
					i += semi + 1
					continue
				}
			}
		}
		sb.WriteByte(s[i])
		src = append(src, base+i)
		i++
	}

	src = append(src, base+len(s))
	return sb.String(), src
}

func decodeEntity(entity string) (rune, bool) {
	switch entity {
	case "amp":
		return '&', true
	case "lt":
		return '<', true
	case "gt":
		return '>', true
	case "quot":
		return '"', true
	case "apos":
		return '\'', true
	}
	if strings.HasPrefix(entity, "#") {
		numStr := entity[1:]
		numBase := 10
		if strings.HasPrefix(numStr, "x") || strings.HasPrefix(numStr, "X") {
			numStr = numStr[1:]
			numBase = 16
		}
		if n, err := strconv.ParseInt(numStr, numBase, 32); err == nil {
			return rune(n), true
		}
	}
	return 0, false
}

// escapeXML 转义将写入 <w:t> 的替换文本
func escapeXML(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '&':
			sb.WriteString("&amp;")
		case '<':
			sb.WriteString("&lt;")
		case '>':
			sb.WriteString("&gt;")
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// splice 部件 XML 上的一次字节替换
type splice struct {
	start, end int
	repl       string
}

// applySplices 自右向左应用所有替换，保证先计算的偏移不被后续编辑破坏
func (p *Part) applySplices(splices []splice) {
	if len(splices) == 0 {
		return
	}
	sort.Slice(splices, func(i, j int) bool {
		return splices[i].start > splices[j].start
	})

	xmlStr := p.XML
	for _, sp := range splices {
		xmlStr = xmlStr[:sp.start] + sp.repl + xmlStr[sp.end:]
	}
	p.XML = xmlStr
	p.modified = true
}
