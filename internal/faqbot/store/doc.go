// Package store 提供 faqbot 服务的知识库存储层。
//
// 该包定义了按商家隔离的向量索引与文档块存储，
// 支持整体替换、相似度检索和持久化功能。
package store
