// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package plugin

import (
	stderrors "errors"
	"io"
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"

	"github.com/NVIDIA/diagpack/pkg/archive"
	"github.com/NVIDIA/diagpack/pkg/errors"
)

// ScrubbedMarker replaces the body of redacted secrets.
const ScrubbedMarker = "-----SCRUBBED"

var reSecretBlock = regexp.MustCompile(`(?s)-----BEGIN.*?-----END`)

// globToRegexp translates a shell glob to an anchored expression. Unlike
// path matching, "*" also matches "/".
func globToRegexp(glob string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString(`(?s)^`)
	rs := []rune(glob)
	for i := 0; i < len(rs); i++ {
		switch c := rs[i]; c {
		case '*':
			b.WriteString(`.*`)
		case '?':
			b.WriteString(`.`)
		case '[':
			j := i + 1
			if j < len(rs) && rs[j] == '!' {
				j++
			}
			if j < len(rs) && rs[j] == ']' {
				j++
			}
			for j < len(rs) && rs[j] != ']' {
				j++
			}
			if j >= len(rs) {
				b.WriteString(`\[`)
				continue
			}
			class := rs[i+1 : j]
			b.WriteByte('[')
			if len(class) > 0 && class[0] == '!' {
				b.WriteByte('^')
				class = class[1:]
			}
			for _, r := range class {
				if r == '\\' || r == '[' || r == ']' || r == '^' {
					b.WriteByte('\\')
				}
				b.WriteRune(r)
			}
			b.WriteByte(']')
			i = j
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteString(`$`)
	return regexp.Compile(b.String())
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.WrapWithContext(errors.ErrCodeInvalidRequest, "invalid substitution pattern", err,
			map[string]any{"pattern": pattern})
	}
	return re, nil
}

// substitute rewrites the archived entry dst. literal disables "$"
// expansion in repl.
func (p *Plugin) substitute(dst string, re *regexp.Regexp, repl string, literal bool) (int, error) {
	rc, err := p.archive.OpenFile(dst)
	if err != nil {
		return 0, err
	}
	content, err := io.ReadAll(transform.NewReader(rc, runes.ReplaceIllFormed()))
	rc.Close()
	if err != nil {
		return 0, err
	}

	n := len(re.FindAllIndex(content, -1))
	if n == 0 {
		return 0, nil
	}
	var result []byte
	if literal {
		result = re.ReplaceAllLiteral(content, []byte(repl))
	} else {
		result = re.ReplaceAll(content, []byte(repl))
	}
	if err := p.archive.AddBinary(result, dst); err != nil {
		return 0, err
	}
	return n, nil
}

func (p *Plugin) substituteCommands(cmdGlob string, re *regexp.Regexp, repl string, literal bool) (int, error) {
	glob, err := globToRegexp("*" + cmdGlob + "*")
	if err != nil {
		return 0, errors.WrapWithContext(errors.ErrCodeInvalidRequest, "invalid command pattern", err,
			map[string]any{"command": cmdGlob})
	}
	p.log.Debug("substituting command output", "command", cmdGlob, "pattern", re.String())

	total := 0
	for _, ec := range p.executed {
		if ec.File == "" || !glob.MatchString(ec.Exe) {
			continue
		}
		if ec.Binary {
			p.log.Warn("cannot apply regex substitution to binary output", "command", ec.Exe)
			continue
		}
		n, err := p.substitute(filepath.Join(archive.CommandsDir, ec.File), re, repl, literal)
		if err != nil {
			p.log.Error("regex substitution failed", "command", ec.Exe, "error", err)
			return 0, errors.WrapWithContext(errors.ErrCodeInternal, "regex substitution failed", err,
				map[string]any{"plugin": p.Name(), "command": ec.Exe})
		}
		total += n
	}
	return total, nil
}

// SubstituteCommandOutput applies pattern to the archived output of every
// command whose command line contains the glob cmdGlob. Replacements use
// regexp expansion syntax. It returns the total number of replacements.
func (p *Plugin) SubstituteCommandOutput(cmdGlob, pattern, repl string) (int, error) {
	re, err := compilePattern(pattern)
	if err != nil {
		return 0, err
	}
	return p.substituteCommands(cmdGlob, re, repl, false)
}

// RedactSecrets replaces PEM style blocks in matching command output with
// ScrubbedMarker.
func (p *Plugin) RedactSecrets(cmdGlob string) (int, error) {
	return p.substituteCommands(cmdGlob, reSecretBlock, ScrubbedMarker, true)
}

// destForSrcPath returns the archive path holding the content of srcPath.
// Collected links are followed through the ledger to the copied target;
// a link whose target was not copied has no content and yields "".
func (p *Plugin) destForSrcPath(srcPath string) string {
	host := p.JoinSysroot(srcPath)
	seen := make(map[string]bool)
	for !seen[host] {
		seen[host] = true
		rec, ok := p.copiedRecord(host)
		if !ok {
			return ""
		}
		if !rec.Symlink {
			return rec.DstPath
		}
		host = p.linkTarget(rec.SrcPath, rec.PointsTo)
	}
	p.log.Debug("link loop while resolving substitution target", "path", srcPath)
	return ""
}

func (p *Plugin) copiedRecord(host string) (CopiedFile, bool) {
	for _, c := range p.copied {
		if c.SrcPath == host {
			return c, true
		}
	}
	return CopiedFile{}, false
}

// SubstituteFile applies pattern to the archived copy of srcPath. A path
// that was not copied yields zero replacements.
func (p *Plugin) SubstituteFile(srcPath, pattern, repl string) (int, error) {
	re, err := compilePattern(pattern)
	if err != nil {
		return 0, err
	}
	return p.substituteFile(srcPath, re, repl)
}

func (p *Plugin) substituteFile(srcPath string, re *regexp.Regexp, repl string) (int, error) {
	dst := p.destForSrcPath(srcPath)
	if dst == "" {
		return 0, nil
	}
	n, err := p.substitute(dst, re, repl, false)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			p.log.Debug("file to substitute does not exist", "path", srcPath)
			return 0, nil
		}
		return 0, errors.WrapWithContext(errors.ErrCodeInternal, "file substitution failed", err,
			map[string]any{"plugin": p.Name(), "path": srcPath})
	}
	return n, nil
}

// SubstitutePathPattern applies pattern to every copied file whose path
// matches pathRegex at its start. It returns the total number of
// replacements.
func (p *Plugin) SubstitutePathPattern(pathRegex, pattern, repl string) (int, error) {
	pathRe, err := compilePattern(`^(?:` + pathRegex + `)`)
	if err != nil {
		return 0, err
	}
	re, err := compilePattern(pattern)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]bool)
	total := 0
	for _, c := range p.CopiedFiles() {
		if c.Symlink || seen[c.DstPath] || !pathRe.MatchString(c.DstPath) {
			continue
		}
		seen[c.DstPath] = true
		n, err := p.substituteFile(c.DstPath, re, repl)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}
