package chunker

import (
	"regexp"
	"strings"
)

// goLang chunks Go source at top-level func/type/var/const boundaries.
type goLang struct{}

var (
	goBlockRe    = regexp.MustCompile(`^(func|type|var|const|import|package)\b`)
	goMethodRe   = regexp.MustCompile(`^func\s*\(\s*\w+\s+\*?(\w+)\s*\)\s+(\w+)`)
	goFuncRe     = regexp.MustCompile(`^func\s+(\w+)`)
	goTypeKindRe = regexp.MustCompile(`^type\s+(\w+)\s+(struct|interface)\b`)
	goTypeRe     = regexp.MustCompile(`^type\s+(\w+)\b`)
)

func (goLang) BlockStart(line string) bool {
	if indentOf(line) > 0 {
		return false // Go declarations are flush left
	}
	return goBlockRe.MatchString(strings.TrimLeft(line, " \t"))
}

func (goLang) Symbol(line string) (string, string) {
	s := strings.TrimSpace(line)
	if m := goMethodRe.FindStringSubmatch(s); m != nil {
		return m[1] + "." + m[2], "method"
	}
	if m := goFuncRe.FindStringSubmatch(s); m != nil {
		return m[1], "function"
	}
	if m := goTypeKindRe.FindStringSubmatch(s); m != nil {
		return m[1], m[2]
	}
	if m := goTypeRe.FindStringSubmatch(s); m != nil {
		return m[1], "type"
	}
	return "", ""
}

// Prologue spans the package clause, imports, and any leading comments.
func (goLang) Prologue(lines []string) int {
	n := 0
	inImport := false
	for i, line := range lines {
		s := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(s, "package "):
			n = i + 1
		case s == "import (":
			inImport = true
			n = i + 1
		case strings.HasPrefix(s, "import "):
			n = i + 1
		case inImport:
			n = i + 1
			if s == ")" {
				inImport = false
			}
		case s == "" || strings.HasPrefix(s, "//"):
			n = i + 1
		default:
			return n
		}
	}
	return n
}

// pythonLang chunks Python at def/class/decorator boundaries, considering
// both module level and class level (indent up to one step).
type pythonLang struct{}

var (
	pyBlockRe = regexp.MustCompile(`^(?:async\s+)?def\s+\w+|^class\s+\w+|^@\w+`)
	pyFuncRe  = regexp.MustCompile(`^(?:async\s+)?def\s+(\w+)`)
	pyClassRe = regexp.MustCompile(`^class\s+(\w+)`)
)

func (pythonLang) BlockStart(line string) bool {
	if indentOf(line) > 4 {
		return false
	}
	return pyBlockRe.MatchString(strings.TrimLeft(line, " \t"))
}

func (pythonLang) Symbol(line string) (string, string) {
	s := strings.TrimLeft(line, " \t")
	if m := pyFuncRe.FindStringSubmatch(s); m != nil {
		return m[1], "function"
	}
	if m := pyClassRe.FindStringSubmatch(s); m != nil {
		return m[1], "class"
	}
	return "", ""
}

func (pythonLang) Prologue([]string) int { return 0 }

// typescriptLang covers TypeScript and JavaScript: exported declarations,
// functions, classes, interfaces, and top-level const/let bindings.
type typescriptLang struct{}

var (
	tsBlockRe = regexp.MustCompile(`^(export\s+)?(default\s+)?(async\s+)?(function|class|interface|enum|type|const|let|var)\b|^@\w+`)
	tsFuncRe  = regexp.MustCompile(`^(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s*\*?\s*(\w+)`)
	tsClassRe = regexp.MustCompile(`^(?:export\s+)?(?:default\s+)?(?:abstract\s+)?class\s+(\w+)`)
	tsIfaceRe = regexp.MustCompile(`^(?:export\s+)?interface\s+(\w+)`)
	tsEnumRe  = regexp.MustCompile(`^(?:export\s+)?(?:const\s+)?enum\s+(\w+)`)
	tsTypeRe  = regexp.MustCompile(`^(?:export\s+)?type\s+(\w+)`)
	tsArrowRe = regexp.MustCompile(`^(?:export\s+)?(?:const|let|var)\s+(\w+)\s*(?::[^=]+)?=\s*(?:async\s+)?(?:\([^)]*\)|\w+)\s*=>`)
)

func (typescriptLang) BlockStart(line string) bool {
	if indentOf(line) > 0 {
		return false
	}
	return tsBlockRe.MatchString(line)
}

func (typescriptLang) Symbol(line string) (string, string) {
	s := strings.TrimSpace(line)
	if m := tsFuncRe.FindStringSubmatch(s); m != nil {
		return m[1], "function"
	}
	if m := tsClassRe.FindStringSubmatch(s); m != nil {
		return m[1], "class"
	}
	if m := tsIfaceRe.FindStringSubmatch(s); m != nil {
		return m[1], "interface"
	}
	if m := tsEnumRe.FindStringSubmatch(s); m != nil {
		return m[1], "enum"
	}
	if m := tsTypeRe.FindStringSubmatch(s); m != nil {
		return m[1], "type"
	}
	if m := tsArrowRe.FindStringSubmatch(s); m != nil {
		return m[1], "function"
	}
	return "", ""
}

func (typescriptLang) Prologue(lines []string) int {
	n := 0
	for i, line := range lines {
		s := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(s, "import ") || strings.HasPrefix(s, "import{"):
			n = i + 1
		case s == "" || strings.HasPrefix(s, "//") || strings.HasPrefix(s, "/*") || strings.HasPrefix(s, "*"):
			n = i + 1
		default:
			return n
		}
	}
	return n
}

// javaLang covers Java and Kotlin: class-ish declarations and methods at
// class nesting depth, plus annotations.
type javaLang struct{}

var (
	javaBlockRe  = regexp.MustCompile(`^(public|private|protected|abstract|final|static|class|interface|enum|record|fun|object|data)\b|^@\w+`)
	javaClassRe  = regexp.MustCompile(`\b(class|interface|enum|record|object)\s+(\w+)`)
	javaMethodRe = regexp.MustCompile(`\b(\w+)\s*\([^)]*\)\s*(\{|throws)`)
	ktFunRe      = regexp.MustCompile(`\bfun\s+(?:<[^>]+>\s+)?(?:[\w.]+\.)?(\w+)\s*\(`)
)

func (javaLang) BlockStart(line string) bool {
	if indentOf(line) > 4 {
		return false
	}
	return javaBlockRe.MatchString(strings.TrimLeft(line, " \t"))
}

func (javaLang) Symbol(line string) (string, string) {
	s := strings.TrimSpace(line)
	if m := javaClassRe.FindStringSubmatch(s); m != nil {
		kind := m[1]
		if kind == "object" {
			kind = "class"
		}
		return m[2], kind
	}
	if m := ktFunRe.FindStringSubmatch(s); m != nil {
		return m[1], "function"
	}
	if m := javaMethodRe.FindStringSubmatch(s); m != nil {
		return m[1], "method"
	}
	return "", ""
}

func (javaLang) Prologue(lines []string) int {
	n := 0
	for i, line := range lines {
		s := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(s, "package ") || strings.HasPrefix(s, "import "):
			n = i + 1
		case s == "" || strings.HasPrefix(s, "//") || strings.HasPrefix(s, "/*") || strings.HasPrefix(s, "*"):
			n = i + 1
		default:
			return n
		}
	}
	return n
}
