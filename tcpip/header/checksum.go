package header

// Checksum 校验和的计算
// 按每 16 位(大端)求和得出一个 32 位的数；奇数长度时最后一个字节作为高 8 位补齐；
// 如果这个 32 位的数高 16 位不为 0，则高 16 位加低 16 位再得到一个 32 位的数；
// 重复直到高 16 位为 0。返回的是未取反的部分和，initial 用于串联多段数据。
func Checksum(buf []byte, initial uint16) uint16 {
	v := uint32(initial)

	l := len(buf)
	if l&1 != 0 {
		l--
		v += uint32(buf[l]) << 8
	}

	for i := 0; i < l; i += 2 {
		v += (uint32(buf[i]) << 8) + uint32(buf[i+1])
	}

	return ChecksumCombine(uint16(v), uint16(v>>16))
}

// ChecksumCombine combines the two uint16 to form their checksum. This is done
// by adding them and the carry.
func ChecksumCombine(a, b uint16) uint16 {
	v := uint32(a) + uint32(b)
	return uint16(v + v>>16)
}

// InternetChecksum returns the ones' complement of the folded sum of buf,
// i.e. the value that goes into a header checksum field.
func InternetChecksum(buf []byte) uint16 {
	return ^Checksum(buf, 0)
}

// ChecksumValid reports whether buf, checksum field included, sums to zero.
func ChecksumValid(buf []byte) bool {
	return InternetChecksum(buf) == 0
}
