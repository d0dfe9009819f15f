package screenlock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestLockStateString 测试状态到载荷的映射
func TestLockStateString(t *testing.T) {
	assert.Equal(t, "lock", Locked.String())
	assert.Equal(t, "unlock", Unlocked.String())
	assert.Equal(t, "lock", LockState(true).String())
}

// TestDebounce 测试去抖判断
func TestDebounce(t *testing.T) {
	tests := []struct {
		name        string
		previous    LockState
		observed    LockState
		wantState   LockState
		wantChanged bool
	}{
		{"保持未锁定", Unlocked, Unlocked, Unlocked, false},
		{"保持锁定", Locked, Locked, Locked, false},
		{"锁定", Unlocked, Locked, Locked, true},
		{"解锁", Locked, Unlocked, Unlocked, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, changed := Debounce(tt.previous, tt.observed)
			assert.Equal(t, tt.wantState, state)
			assert.Equal(t, tt.wantChanged, changed)

			// 纯函数：重复调用结果一致
			again, changedAgain := Debounce(tt.previous, tt.observed)
			assert.Equal(t, state, again)
			assert.Equal(t, changed, changedAgain)
		})
	}
}

// TestDebounceSequence 测试发布次数等于相邻不同读数的对数
func TestDebounceSequence(t *testing.T) {
	sequences := [][]LockState{
		{false, false, true, true, false},
		{true, false, true, false},
		{false, false, false},
		{true, true, true, true},
		{},
	}

	for _, seq := range sequences {
		last := Unlocked
		var payloads []string
		for _, observed := range seq {
			next, changed := Debounce(last, observed)
			if changed {
				payloads = append(payloads, next.String())
			}
			last = next
		}

		// 初始状态为未锁定，把它当作序列的前一个元素
		full := append([]LockState{Unlocked}, seq...)
		diffs := 0
		for i := 1; i < len(full); i++ {
			if full[i] != full[i-1] {
				diffs++
			}
		}
		assert.Len(t, payloads, diffs, "sequence %v", seq)
	}
}
