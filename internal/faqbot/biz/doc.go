// Package biz 提供 faqbot 服务的业务逻辑层。
//
// 该包采用分层架构，将业务逻辑拆分为以下组件：
//   - Ingestor: 负责知识库构建（分块、嵌入、建索引）
//   - Retriever: 负责相似度检索
//   - Generator: 负责基于检索上下文的回答生成
//   - Conversation: 负责单条消息的两阶段编排
//   - FAQService: 组合以上组件，提供统一的服务接口
package biz
