package types

import "github.com/snksoft/crc"

// crcTable is CRC-32/ISO-HDLC, the checksum zip and PNG use.
var crcTable = crc.NewTable(&crc.Parameters{
	Width:      32,
	Polynomial: 0x04c11db7,
	ReflectIn:  true,
	ReflectOut: true,
	Init:       0xffffffff,
	FinalXor:   0xffffffff,
})

// Checksum returns the CRC-32 of b.
func Checksum(b []byte) uint32 {
	hash := crc.NewHashWithTable(crcTable)
	hash.Write(b)
	return hash.CRC32()
}
