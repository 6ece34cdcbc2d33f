package nexus

import (
	"path"
	"slices"
	"strings"

	"nexuszip/pkg/attrs"
	"nexuszip/pkg/ignore"
	"nexuszip/pkg/types"
)

// 节点在工作目录中的布局:
//
//	<group>/.attrs        组属性
//	<field>               字段数据 (文本或二进制)
//	<field>.attrs         字段属性
//	<link>                哨兵文件
//	<link>.link           链接自身属性，包含 target
const (
	groupAttrsName = ".attrs"
	attrsSuffix    = ".attrs"
	linkSuffix     = ".link"
	linkSentinel   = "soft link: see .link file for target"
)

// Kind 是节点的种类
type Kind int

const (
	KindGroup Kind = iota
	KindField
	KindLink
)

func (k Kind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindField:
		return "field"
	case KindLink:
		return "link"
	}
	return "unknown"
}

// Node 是组、字段与链接共有的接口
type Node interface {
	Path() string
	Name() string
	Kind() Kind
	Attrs() attrs.Map
	Parent() (*Group, error)
	File() *File
}

type node struct {
	file *File
	path string
}

// Path 返回规范化的绝对路径
func (n node) Path() string { return n.path }

// Name 返回叶子名，根为 "/"
func (n node) Name() string {
	if n.path == types.Root {
		return types.Root
	}
	return path.Base(n.path)
}

func (n node) File() *File { return n.file }

// Parent 返回所在的组，根的父节点是它自己
func (n node) Parent() (*Group, error) {
	dir, _ := types.Split(n.path)
	return n.file.group(dir)
}

// reserved 判断目录项是否是内部文件而不是节点
// 打包时会被忽略的垃圾文件名同样保留，否则节点会在 Close 时丢失
func reserved(name string) bool {
	return strings.HasPrefix(name, ".") ||
		slices.Contains(ignore.JunkNames, name) ||
		strings.HasSuffix(name, attrsSuffix) ||
		strings.HasSuffix(name, linkSuffix) ||
		strings.HasSuffix(name, attrs.TempSuffix)
}
