package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMutationObserverExpr(t *testing.T) {
	// 脚本回调的绑定名必须与注册的绑定名一致
	assert.Contains(t, mutationObserverExpr, "window."+mutationBinding)
	// 重复注入守卫：导航后再装一遍不会叠加观察器
	assert.Contains(t, mutationObserverExpr, "window.__hushtabObserver")
}
