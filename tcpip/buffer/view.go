package buffer

// View 是一段可见的字节切片，协议层通过它读写帧的某一部分
type View []byte

func NewView(size int) View {
	return make(View, size)
}

func NewViewFromBytes(b []byte) View {
	return append(View(nil), b...)
}

// TrimFront  从缓冲区的可见部分中删除第一个“计数”字节
func (v *View) TrimFront(count int) {
	*v = (*v)[count:]
}

// CapLength 不可逆地将缓冲区可见部分的长度减少到指定的值
func (v *View) CapLength(length int) {
	*v = (*v)[:length:length]
}
