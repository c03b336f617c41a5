package pool

import "sync"

// 全局池，懒初始化。
var (
	backgroundOnce sync.Once
	backgroundPool *Pool
)

// Background 返回全局后台任务池。
func Background() *Pool {
	backgroundOnce.Do(func() {
		p, err := NewPool("background", BackgroundPoolConfig())
		if err != nil {
			// 配置为常量，失败只可能是容量非法
			panic(err)
		}
		backgroundPool = p
	})
	return backgroundPool
}

// SubmitBackground 提交任务到全局后台池。
func SubmitBackground(task func()) error {
	return Background().Submit(task)
}
