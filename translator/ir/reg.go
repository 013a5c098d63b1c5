package ir

// Reg is a general purpose guest register tag.
// The zero register is never represented, reads of it are lifted to Lit(0)
// and writes to it are dropped by the decoder.
// Values start at 1 so the tag doubles as the register's region bit.
type Reg int

const (
	Ra Reg = 1 + iota
	Sp
	Gp
	Tp
	T0
	T1
	T2
	T3
	T4
	T5
	T6
	S0
	S1
	S2
	S3
	S4
	S5
	S6
	S7
	S8
	S9
	S10
	S11
	A0
	A1
	A2
	A3
	A4
	A5
	A6
	A7

	NumRegs = 31
)

var regName = [...]string{
	Ra: "ra", Sp: "sp", Gp: "gp", Tp: "tp",
	T0: "t0", T1: "t1", T2: "t2", T3: "t3", T4: "t4", T5: "t5", T6: "t6",
	S0: "s0", S1: "s1", S2: "s2", S3: "s3", S4: "s4", S5: "s5",
	S6: "s6", S7: "s7", S8: "s8", S9: "s9", S10: "s10", S11: "s11",
	A0: "a0", A1: "a1", A2: "a2", A3: "a3", A4: "a4", A5: "a5", A6: "a6", A7: "a7",
}

// xReg maps a machine register number (x1..x31) to its tag.
var xReg = [32]Reg{
	1: Ra, 2: Sp, 3: Gp, 4: Tp,
	5: T0, 6: T1, 7: T2,
	8: S0, 9: S1,
	10: A0, 11: A1, 12: A2, 13: A3, 14: A4, 15: A5, 16: A6, 17: A7,
	18: S2, 19: S3, 20: S4, 21: S5, 22: S6, 23: S7, 24: S8, 25: S9, 26: S10, 27: S11,
	28: T3, 29: T4, 30: T5, 31: T6,
}

func (r Reg) String() string {
	if r < 1 || int(r) >= len(regName) {
		return "x?"
	}

	return regName[r]
}

// RegByX returns the tag for machine register xn.
// It returns 0 for x0, which has no tag.
func RegByX(n int) Reg {
	return xReg[n&31]
}

// RegByName looks a register tag up by its abi mnemonic.
func RegByName(name string) (Reg, bool) {
	for r, n := range regName {
		if n == name {
			return Reg(r), true
		}
	}

	return 0, false
}
