package render

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.BrazilianPortuguese

	message.SetString(lang, keySubject, "Resumo do LC Notes de %s")
	message.SetString(lang, keyIntro, "Aqui está o seu e-mail agendado do LC Notes.")
	message.SetString(lang, keyTrigger, "Disparado por %s em %s.")
	message.SetString(lang, keyUnnamedRule, "agendamento de notas")
	message.SetString(lang, keyReference, "Referência: %s")
	message.SetString(lang, keyFooter, "Você recebe esta mensagem porque seu endereço está na lista do LC Notes.")
}
